package holdem

import "holdem-table/card"

type PotResult struct {
	Amount     int64   `json:"amount"`
	Eligible   []int   `json:"eligible"`
	Winners    []int   `json:"winners"`
	WinAmounts []int64 `json:"winAmounts"`
}

// Reveal is one seat's showdown disclosure.
type Reveal struct {
	Seat     int          `json:"seatIndex"`
	Hole     []card.Card  `json:"hole"`
	Category HandCategory `json:"category"`
	Rank     string       `json:"rank"`
	BestFive []card.Card  `json:"bestFive"`
}

type Settlement struct {
	HandID   uint32      `json:"handId"`
	Dealer   int         `json:"dealer"`
	Board    []card.Card `json:"board"`
	Pot      int64       `json:"pot"`
	Pots     []PotResult `json:"pots"`
	Reveals  []Reveal    `json:"reveals"`
	Showdown bool        `json:"showdown"`
}

// settleLocked resolves the hand: builds side pots from the contribution
// ledger, evaluates contested pots, pays winners (odd chip to the winner
// closest clockwise after the button) and returns the table to waiting.
func (g *Game) settleLocked(runOut bool) (*Settlement, error) {
	contested := g.unfoldedCountLocked() >= 2

	if runOut && contested {
		for g.community.Count() < 5 {
			need := 5 - g.community.Count()
			if need > 2 {
				need = 3
			} else {
				need = 1
			}
			g.dealBoardLocked(need)
		}
	}
	g.stage = StageShowdown

	entries := make([]potEntry, 0, len(g.seats))
	for i, s := range g.seats {
		if s != nil && s.inHand {
			entries = append(entries, potEntry{seat: i, contributed: s.contributed, folded: s.folded})
		}
	}
	pots := buildPots(entries)

	result := &Settlement{
		HandID:   g.handCount,
		Dealer:   g.dealerIndex,
		Board:    append([]card.Card{}, g.community...),
		Pot:      g.pot,
		Showdown: contested,
	}

	// Evaluate only when more than one seat reached showdown.
	scores := make(map[int]*bestHandResult)
	if contested {
		if g.community.Count() != 5 {
			return nil, errInvalidState("showdown without a full board")
		}
		for i, s := range g.seats {
			if s == nil || !s.inHand || s.folded {
				continue
			}
			all := make(card.List, 0, 7)
			all = append(all, s.hole...)
			all = append(all, g.community...)
			if len(all) != 7 {
				return nil, errInvalidState("need 7 cards to evaluate")
			}
			eval := EvalBestOf7(all)
			if eval == nil {
				return nil, errInvalidState("eval failed")
			}
			scores[i] = eval
			bestFive := make([]card.Card, 0, 5)
			for _, idx := range eval.BestIndex {
				bestFive = append(bestFive, all[idx])
			}
			result.Reveals = append(result.Reveals, Reveal{
				Seat:     i,
				Hole:     s.Hole(),
				Category: eval.Category,
				Rank:     eval.Category.String(),
				BestFive: bestFive,
			})
		}
	}

	var distributed int64
	for _, p := range pots {
		pr := PotResult{
			Amount:   p.amount,
			Eligible: append([]int{}, p.eligible...),
		}
		winners := potWinners(p.eligible, scores)
		share := p.amount / int64(len(winners))
		remainder := p.amount % int64(len(winners))

		// Deterministic odd-chip rule: closest clockwise after the button.
		winners = g.sortClockwiseAfterDealerLocked(winners)
		for i, w := range winners {
			amt := share
			if i == 0 {
				amt += remainder
			}
			pr.Winners = append(pr.Winners, w)
			pr.WinAmounts = append(pr.WinAmounts, amt)
			g.seats[w].chips += amt
			distributed += amt
		}
		result.Pots = append(result.Pots, pr)
	}

	if distributed != result.Pot {
		g.halted = true
		return nil, InvariantError("settlement did not conserve the pot")
	}

	g.finishHandLocked()
	g.lastResult = result
	return result, nil
}

// potWinners picks the best-scoring eligible seats; with no scores (win by
// fold) the sole eligible seat takes the pot.
func potWinners(eligible []int, scores map[int]*bestHandResult) []int {
	winners := make([]int, 0, len(eligible))
	var best uint32
	for _, seat := range eligible {
		eval := scores[seat]
		if eval == nil {
			if len(scores) == 0 {
				winners = append(winners, seat)
			}
			continue
		}
		switch {
		case len(winners) == 0 || eval.Score > best:
			winners = winners[:0]
			winners = append(winners, seat)
			best = eval.Score
		case eval.Score == best:
			winners = append(winners, seat)
		}
	}
	return winners
}

func (g *Game) sortClockwiseAfterDealerLocked(seats []int) []int {
	n := len(g.seats)
	dist := func(seat int) int {
		return (seat - g.dealerIndex - 1 + 2*n) % n
	}
	out := append([]int{}, seats...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && dist(out[j]) < dist(out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// finishHandLocked clears per-hand state and reopens seating.
func (g *Game) finishHandLocked() {
	for _, s := range g.seats {
		if s != nil {
			s.resetForHand()
		}
	}
	g.pot = 0
	g.betToCall = 0
	g.lastRaise = 0
	g.community = nil
	g.deck = nil
	g.turnIndex = InvalidSeat
	g.stage = StageWaiting
}
