package llm

import "strings"

// pricePer1K is a blended USD price per 1K tokens.
var pricePer1K = map[string]float64{
	"gpt-4o":                            0.00625,
	"gpt-4o-mini":                       0.000375,
	"gpt-4-turbo":                       0.02,
	"gpt-3.5-turbo":                     0.001,
	"claude-3-5-sonnet-20241022":        0.009,
	"claude-3-5-haiku-20241022":         0.0024,
	"claude-sonnet-4-20250514":          0.009,
	"llama-3.3-70b-versatile":           0.00069,
	"llama-3.1-8b-instant":              0.000065,
	"mixtral-8x7b-32768":                0.00024,
	"meta-llama/llama-3.3-70b-instruct": 0.0004,
	"deepseek/deepseek-chat":            0.0007,
	"google/gemini-2.0-flash-001":       0.00025,
}

// EstimateCost returns the approximate USD cost of tokens on model.
// Unknown models yield zero.
func EstimateCost(model string, tokens int) float64 {
	if tokens <= 0 {
		return 0
	}
	price, ok := pricePer1K[strings.ToLower(model)]
	if !ok {
		return 0
	}
	return float64(tokens) / 1000 * price
}
