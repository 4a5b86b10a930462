package validate

// englishNegations is the fixed set used to detect that a source line is
// negated. The n't contraction suffix is handled separately in hasNegation.
var englishNegations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "nothing": true,
	"nobody": true, "nowhere": true, "neither": true, "nor": true,
	"don't": true, "doesn't": true, "didn't": true, "won't": true,
	"wouldn't": true, "can't": true, "cannot": true, "couldn't": true,
	"shouldn't": true, "isn't": true, "aren't": true, "wasn't": true,
	"weren't": true, "haven't": true, "hasn't": true, "hadn't": true,
	"mustn't": true, "ain't": true, "shan't": true, "needn't": true,
}

// portugueseNegations is the target-language counterpart.
var portugueseNegations = map[string]bool{
	"não": true, "nao": true, "nunca": true, "jamais": true, "nada": true,
	"nenhum": true, "nenhuma": true, "ninguém": true, "ninguem": true,
	"nem": true, "tampouco": true,
}

// Pronoun sets for gender-mismatch detection: the check fires only when one
// side is exclusively feminine and the other exclusively masculine.
var (
	englishFeminine  = map[string]bool{"she": true, "her": true, "hers": true, "herself": true}
	englishMasculine = map[string]bool{"he": true, "him": true, "his": true, "himself": true}

	portugueseFeminine  = map[string]bool{"ela": true, "dela": true, "delas": true, "elas": true}
	portugueseMasculine = map[string]bool{"ele": true, "dele": true, "deles": true, "eles": true}
)

// artifactPrefixes are explanation-style leads that signal the model echoed
// scaffolding instead of translating.
var artifactPrefixes = []string{
	"translation:",
	"translated:",
	"tradução:",
	"traducao:",
	"note:",
	"nota:",
	"here is",
	"here's",
	"the translation",
	"a tradução",
	"sure,",
	"certainly",
	"in portuguese",
	"english:",
	"portuguese:",
}
