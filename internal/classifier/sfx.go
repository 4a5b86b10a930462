package classifier

// soundEffectTranslations is the bundled dictionary for common subtitle
// sound-effect cues (English to Brazilian Portuguese, the default target).
// Deployments targeting another language swap this table out.
var soundEffectTranslations = map[string]string{
	"sighs": "suspira", "sigh": "suspiro",
	"gasps": "ofega", "gasp": "ofego",
	"groans": "geme", "groan": "gemido",
	"screams": "grita", "scream": "grito",
	"laughs": "ri", "laugh": "risada",
	"laughing": "rindo", "laughter": "risadas",
	"coughs": "tosse", "cough": "tosse",
	"sobs": "soluça", "sob": "soluço",
	"sobbing": "soluçando",
	"sniffs":  "funga", "sniff": "fungada",
	"chuckles": "dá risada", "chuckle": "risadinha",
	"giggles": "dá risadinha", "giggle": "risadinha",
	"whispers": "sussurra", "whisper": "sussurro",
	"whispering": "sussurrando",
	"shouts":     "grita", "shout": "grito",
	"shouting": "gritando",
	"yells":    "berra", "yell": "berro",
	"yelling": "berrando",
	"cries":   "chora", "cry": "choro",
	"crying": "chorando",
	"moans":  "geme", "moan": "gemido",
	"grunts": "rosna", "grunt": "rosnado",
	"growls": "rosna", "growl": "rosnado",
	"hums": "cantarola", "hum": "cantarolar",
	"humming":  "cantarolando",
	"whistles": "assobia", "whistle": "assobio",
	"claps": "aplaude", "clap": "aplauso",
	"knocks": "bate", "knock": "batida",
	"knocking":  "batendo na porta",
	"footsteps": "passos",
	"gunshot":   "tiro", "gunshots": "tiros",
	"explosion": "explosão", "explosions": "explosões",
	"thunder":            "trovão",
	"wind":               "vento",
	"rain":               "chuva",
	"door":               "porta",
	"phone":              "telefone",
	"music playing":      "música tocando",
	"indistinct chatter": "conversa indistinta",
	"crowd cheering":     "multidão comemorando",
	"alarm":              "alarme",
	"siren":              "sirene",
	"breathing":          "respirando",
	"panting":            "ofegando",
	"stammering":         "gaguejando",
	"stuttering":         "gaguejando",
	"ringing":            "tocando",
	"beeping":            "bipando",
	"buzzing":            "zumbindo",
	"ticking":            "tiquetaqueando",
	"clicking":           "clicando",
	"creaking":           "rangendo",
	"applause":           "aplausos",
	"silence":            "silêncio",
	"static":             "estática",
	"singing":            "cantando",
	"talking":            "falando",
	"wailing":            "lamentando",
	"inhales":            "inspira", "inhale": "inspiração",
	"exhales": "expira", "exhale": "expiração",
	"snoring": "roncando", "snores": "ronca",
	"screaming":        "gritando",
	"gasping":          "ofegando",
	"groaning":         "gemendo",
	"coughing":         "tossindo",
	"sniffing":         "fungando",
	"barking":          "latindo",
	"dog barking":      "cachorro latindo",
	"cat meowing":      "gato miando",
	"birds chirping":   "pássaros cantando",
	"engine revving":   "motor acelerando",
	"tires screeching": "pneus cantando",
	"glass shattering": "vidro quebrando",
	"door slams":       "porta bate",
	"door opens":       "porta abre",
	"door closes":      "porta fecha",
	"bell ringing":     "sino tocando",
	"crowd murmuring":  "multidão murmurando",
	"heavy breathing":  "respiração pesada",
	"muffled":          "abafado",
	"rustling":         "farfalhando",
	"splashing":        "espirrando",
	"dripping":         "pingando",
	"horn honking":     "buzina tocando",
	"clattering":       "chacoalhando",
	"slurping":         "sorvendo",
	"chewing":          "mastigando",
	"typing":           "digitando",
	"camera shutter":   "obturador da câmera",
	"thudding":         "baque",
}
