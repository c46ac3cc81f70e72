package claudecode

import (
	"strings"

	"github.com/spendbar/spendbar/internal/core"
)

type pricing struct {
	inputPerMillion       float64
	outputPerMillion      float64
	cacheReadPerMillion   float64
	cacheCreatePerMillion float64
}

var modelPricing = map[string]pricing{
	"opus": {
		inputPerMillion:       15.0,
		outputPerMillion:      75.0,
		cacheReadPerMillion:   1.50,
		cacheCreatePerMillion: 18.75,
	},
	"sonnet": {
		inputPerMillion:       3.0,
		outputPerMillion:      15.0,
		cacheReadPerMillion:   0.30,
		cacheCreatePerMillion: 3.75,
	},
	"haiku": {
		inputPerMillion:       0.80,
		outputPerMillion:      4.0,
		cacheReadPerMillion:   0.08,
		cacheCreatePerMillion: 1.0,
	},
}

// modelFamily collapses versioned model names to their pricing family.
func modelFamily(model string) string {
	lower := strings.ToLower(model)
	for _, family := range []string{"opus", "haiku", "sonnet"} {
		if strings.Contains(lower, family) {
			return family
		}
	}
	if model == "" {
		return "unknown"
	}
	return model
}

// estimateCost prices an entry at API-equivalent rates. Unknown models get
// sonnet pricing, the most common case.
func estimateCost(e core.LogEntry) float64 {
	p, ok := modelPricing[modelFamily(e.Model)]
	if !ok {
		p = modelPricing["sonnet"]
	}
	cost := float64(e.InputTokens) * p.inputPerMillion / 1_000_000
	cost += float64(e.OutputTokens) * p.outputPerMillion / 1_000_000
	cost += float64(e.CacheReadTokens) * p.cacheReadPerMillion / 1_000_000
	cost += float64(e.CacheCreationTokens) * p.cacheCreatePerMillion / 1_000_000
	return cost
}
