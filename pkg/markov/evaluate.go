package markov

import (
	"math"
)

// DefaultEpsilon is added to every probability before taking its logarithm.
const DefaultEpsilon = 1e-9

// Loss returns the average cross-entropy of tokens under m.
//
// Only pairs whose current word is in the model and whose target was observed
// after it contribute; all other pairs are skipped without penalty. Each
// contributing pair adds -ln(count/total + epsilon), floored at 0. If no pair
// contributes the loss is exactly 0.
func Loss(tokens []string, m *Model, epsilon float64) float64 {
	var sum float64
	var counted int

	// Totals are memoized per word since frequent words repeat throughout a corpus.
	totals := make(map[string]int)
	for i := 0; i+1 < len(tokens); i++ {
		current, target := tokens[i], tokens[i+1]
		successors, ok := m.chains[current]
		if !ok {
			continue
		}
		c, ok := successors[target]
		if !ok {
			continue
		}
		total, ok := totals[current]
		if !ok {
			total = m.Total(current)
			totals[current] = total
		}
		if total == 0 {
			continue
		}
		p := float64(c) / float64(total)
		// Unlike the plain -ln(p+epsilon) sum, each term is floored at 0:
		// with p == 1 the epsilon pushes the argument past 1, and a certain
		// prediction costs nothing instead of a tiny negative amount.
		sum += math.Max(0, -math.Log(p+epsilon))
		counted++
	}

	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}
