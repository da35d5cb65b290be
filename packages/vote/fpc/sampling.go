package fpc

import (
	"github.com/iotaledger/fpc/packages/opinion"
	"github.com/iotaledger/fpc/packages/rng"
)

// sampleWithReplacement draws sampleSize opinion givers uniformly at
// random, with replacement, from givers. This is the defining FPC
// property: a peer drawn more than once has its single response weighted
// by the number of times it was drawn, rather than being deduplicated. No
// deduplication of peer identity is performed either — two distinct
// OpinionGiver values that happen to share an ID() are sampled and counted
// independently.
func sampleWithReplacement(givers []opinion.OpinionGiver, sampleSize int, source rng.Source) map[opinion.OpinionGiver]int {
	counts := make(map[opinion.OpinionGiver]int, sampleSize)
	for i := 0; i < sampleSize; i++ {
		selected := givers[source.Intn(len(givers))]
		counts[selected]++
	}
	return counts
}

// randUniformThreshold draws tau uniformly from [lower, upper). A
// degenerate range (lower == upper, as in the default first-round bounds)
// always returns that fixed value.
func randUniformThreshold(source rng.Source, lower, upper float64) float64 {
	if lower >= upper {
		return lower
	}
	return lower + source.Float64()*(upper-lower)
}
