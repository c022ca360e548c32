package enrich

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/poiesic/enrichit/core"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// estimateTokens counts tokens with the cl100k_base encoding, falling
// back to the rough chars/4 heuristic when the encoding is unavailable
// (offline builds cannot fetch the BPE ranks).
func estimateTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text) / 4
	}
	return len(encoding.Encode(text, nil, nil))
}

// modelRate is USD per million tokens at the standard synchronous price.
type modelRate struct {
	input  float64
	output float64
}

// Standard per-million-token rates for the models the pipeline targets.
// Unknown models fall back to the most expensive listed rate.
var modelRates = map[string]modelRate{
	"gpt-4o":                 {input: 2.50, output: 10.00},
	"gpt-4o-mini":            {input: 0.15, output: 0.60},
	"text-embedding-3-small": {input: 0.02},
	"text-embedding-3-large": {input: 0.13},
}

// batchDiscount is the vendor's price multiplier for batch processing.
const batchDiscount = 0.5

// projectedCostUSD estimates the batch-discounted cost of a build.
// Output tokens apply only to summary jobs, capped per request.
func projectedCostUSD(kind core.Kind, model string, inputTokens, requests, maxOutputTokens int) float64 {
	rate, ok := modelRates[model]
	if !ok {
		rate = modelRate{input: 2.50, output: 10.00}
	}

	cost := float64(inputTokens) / 1e6 * rate.input
	if kind == core.KindSummary {
		cost += float64(requests*maxOutputTokens) / 1e6 * rate.output
	}
	return cost * batchDiscount
}
