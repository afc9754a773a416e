package llm

// Per-1K-token prices in USD.
type modelPrice struct {
	inputPer1K  float64
	outputPer1K float64
}

var modelPrices = map[string]modelPrice{
	"gemini-1.5-flash": {inputPer1K: 0.00001875, outputPer1K: 0.000075},
	"gemini-2.0-flash": {inputPer1K: 0.0001, outputPer1K: 0.0004},
	"gemini-2.0-pro":   {inputPer1K: 0.00125, outputPer1K: 0.005},
}

// defaultPrice is used for models without a published entry.
var defaultPrice = modelPrice{inputPer1K: 0.0001, outputPer1K: 0.0004}

// Cost estimates the USD cost of a call given its token usage.
func Cost(model string, usage Usage) float64 {
	price, ok := modelPrices[model]
	if !ok {
		price = defaultPrice
	}

	inputCost := float64(usage.InputTokens) / 1000 * price.inputPer1K
	outputCost := float64(usage.OutputTokens) / 1000 * price.outputPer1K
	return inputCost + outputCost
}
