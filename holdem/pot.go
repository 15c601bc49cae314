package holdem

import "sort"

// sidePot is one contested layer of the pot. Eligibility is restricted to
// unfolded seats; folded contributions still size the layers they reach.
type sidePot struct {
	amount   int64
	eligible []int
}

type potEntry struct {
	seat        int
	contributed int64
	folded      bool
}

// buildPots splits the hand's contributions into side pots.
//
// Levels are the sorted distinct contribution totals of unfolded seats. Each
// consecutive (prev, level] slice collects that span of every contribution,
// folded seats included, which is what absorbs forfeited chips into the pots
// they reach. Any residue above the highest unfolded level (possible only
// when the last aggressor was folded out by timeout) lands in the top pot so
// the chip total stays conserved.
func buildPots(entries []potEntry) []sidePot {
	levels := make([]int64, 0, len(entries))
	for _, e := range entries {
		if !e.folded && e.contributed > 0 {
			levels = append(levels, e.contributed)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	levels = dedupeLevels(levels)

	pots := make([]sidePot, 0, len(levels))
	prev := int64(0)
	var collected int64
	for _, level := range levels {
		p := sidePot{}
		for _, e := range entries {
			span := minInt64(e.contributed, level) - minInt64(e.contributed, prev)
			if span > 0 {
				p.amount += span
			}
			if !e.folded && e.contributed >= level {
				p.eligible = append(p.eligible, e.seat)
			}
		}
		collected += p.amount
		pots = append(pots, p)
		prev = level
	}

	var total int64
	for _, e := range entries {
		total += e.contributed
	}
	if residue := total - collected; residue > 0 && len(pots) > 0 {
		pots[len(pots)-1].amount += residue
	}
	return pots
}

func dedupeLevels(levels []int64) []int64 {
	out := levels[:0]
	for i, v := range levels {
		if i == 0 || v != levels[i-1] {
			out = append(out, v)
		}
	}
	return out
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
