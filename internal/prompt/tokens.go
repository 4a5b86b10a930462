package prompt

import (
	"strings"
)

// Estimator provides token count estimation for prompt budgeting and cost
// reporting. It is a heuristic, not a real BPE tokenizer: for budgeting
// purposes it averages a four-characters-per-token estimate with a
// 1.4-tokens-per-word estimate.
type Estimator struct {
	charsPerToken float64
}

// NewEstimator creates a token estimator tuned for English-ish text.
func NewEstimator() *Estimator {
	return &Estimator{charsPerToken: 4.0}
}

// EstimateTokens returns an estimated token count for the given text.
func (e *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	byChars := int(float64(len(text)) / e.charsPerToken)
	byWords := int(float64(len(strings.Fields(text))) * 1.4)
	return (byChars + byWords) / 2
}

// EstimateBatch estimates tokens for multiple text lines.
func (e *Estimator) EstimateBatch(lines []string) int {
	total := 0
	for _, line := range lines {
		total += e.EstimateTokens(line)
	}
	return total
}

// Pricing contains per-model pricing information in USD per 1M tokens.
type Pricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

var modelPricing = map[string]Pricing{
	"gpt-4o":           {InputPer1M: 2.50, OutputPer1M: 10.00},
	"gpt-4o-mini":      {InputPer1M: 0.15, OutputPer1M: 0.60},
	"gpt-4-turbo":      {InputPer1M: 10.00, OutputPer1M: 30.00},
	"gpt-3.5-turbo":    {InputPer1M: 0.50, OutputPer1M: 1.50},
	"gemini-1.5-flash": {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini-1.5-pro":   {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini-2.0-flash": {InputPer1M: 0.10, OutputPer1M: 0.40},
	"default":          {InputPer1M: 0.10, OutputPer1M: 0.40},
}

// EstimateCostUSD estimates the cost of translating lines with model.
// Output tokens are assumed to run at ~80% of input for translation work,
// plus one flat 500-token system-prompt overhead added once per call.
func (e *Estimator) EstimateCostUSD(lines []string, model string) float64 {
	inputTokens := e.EstimateBatch(lines) + 500
	outputTokens := int(float64(inputTokens) * 0.8)

	pricing, ok := modelPricing[normalizeModelName(model)]
	if !ok {
		pricing = modelPricing["default"]
	}
	return float64(inputTokens)*pricing.InputPer1M/1e6 +
		float64(outputTokens)*pricing.OutputPer1M/1e6
}

func normalizeModelName(model string) string {
	model = strings.ToLower(model)
	if strings.Contains(model, "free") {
		return "default"
	}
	for _, key := range []string{
		"gpt-4o-mini", "gpt-4o", "gpt-4-turbo", "gpt-3.5",
		"gemini-1.5-flash", "gemini-1.5-pro", "gemini-2.0-flash",
	} {
		if strings.Contains(model, key) {
			if key == "gpt-3.5" {
				return "gpt-3.5-turbo"
			}
			return key
		}
	}
	return "default"
}
