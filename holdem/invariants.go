package holdem

import (
	"fmt"

	"holdem-table/card"
)

// checkInvariantsLocked is the last-line safety net: chips are conserved,
// the card universe is a 52-card permutation, and the turn cursor points at
// an actionable seat. A violation can only mean a bug; the table halts and
// keeps its last snapshot for forensics.
func (g *Game) checkInvariantsLocked() error {
	if g.stage == StageWaiting {
		return nil
	}

	var contributed int64
	for i, s := range g.seats {
		if s == nil || !s.inHand {
			continue
		}
		contributed += s.contributed
		if s.chips < 0 {
			return g.haltLocked(fmt.Sprintf("seat %d has negative stack %d", i, s.chips))
		}
		if s.startStack != s.chips+s.contributed {
			return g.haltLocked(fmt.Sprintf(
				"seat %d leaks chips: start=%d stack=%d contributed=%d",
				i, s.startStack, s.chips, s.contributed))
		}
	}
	if g.pot != contributed {
		return g.haltLocked(fmt.Sprintf("pot %d != contributions %d", g.pot, contributed))
	}

	seen := make(map[card.Card]bool, 52)
	count := 0
	track := func(where string, cards card.List) error {
		for _, c := range cards {
			if !c.Valid() {
				return g.haltLocked(fmt.Sprintf("invalid card in %s", where))
			}
			if seen[c] {
				return g.haltLocked(fmt.Sprintf("duplicate card %s in %s", c, where))
			}
			seen[c] = true
			count++
		}
		return nil
	}
	if err := track("deck", g.deck); err != nil {
		return err
	}
	if err := track("board", g.community); err != nil {
		return err
	}
	for i, s := range g.seats {
		if s == nil || !s.inHand {
			continue
		}
		if err := track(fmt.Sprintf("seat %d hole", i), s.hole); err != nil {
			return err
		}
	}
	if count != 52 {
		return g.haltLocked(fmt.Sprintf("card universe has %d cards", count))
	}

	if g.stage.IsBetting() {
		if g.turnIndex == InvalidSeat {
			return g.haltLocked("betting round with no turn cursor")
		}
		if s := g.seats[g.turnIndex]; s == nil || !s.actionable() {
			return g.haltLocked(fmt.Sprintf("turn cursor %d not actionable", g.turnIndex))
		}
	}
	return nil
}

func (g *Game) haltLocked(msg string) error {
	g.halted = true
	return InvariantError(msg)
}
