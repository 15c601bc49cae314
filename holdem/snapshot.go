package holdem

import "holdem-table/card"

// SeatSnapshot carries one seat's full state, hole cards included. The
// session layer is responsible for redacting holes before broadcast.
type SeatSnapshot struct {
	Identity    string      `json:"identity"`
	Chips       int64       `json:"chips"`
	Bet         int64       `json:"currentBet"`
	Contributed int64       `json:"totalContributed"`
	StartStack  int64       `json:"startStack"`
	InHand      bool        `json:"inHand"`
	Folded      bool        `json:"folded"`
	AllIn       bool        `json:"allIn"`
	Acted       bool        `json:"acted"`
	Hole        []card.Card `json:"hole,omitempty"`
}

// Snapshot is the full table state. Serialized as-is it is the durable
// checkpoint record: it includes the deck so an in-progress hand resumes
// after a restart without dealing twice.
type Snapshot struct {
	HandCount   uint32          `json:"handCount"`
	Stage       Stage           `json:"stage"`
	DealerIndex int             `json:"dealerIndex"`
	TurnIndex   int             `json:"turnIndex"`
	Pot         int64           `json:"pot"`
	BetToCall   int64           `json:"currentBetToCall"`
	LastRaise   int64           `json:"lastRaiseAmount"`
	Deck        []card.Card     `json:"deck"`
	Community   []card.Card     `json:"community"`
	Seats       []*SeatSnapshot `json:"seats"`
}

func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		HandCount:   g.handCount,
		Stage:       g.stage,
		DealerIndex: g.dealerIndex,
		TurnIndex:   g.turnIndex,
		Pot:         g.pot,
		BetToCall:   g.betToCall,
		LastRaise:   g.lastRaise,
		Deck:        append([]card.Card{}, g.deck...),
		Community:   append([]card.Card{}, g.community...),
		Seats:       make([]*SeatSnapshot, len(g.seats)),
	}
	for i, seat := range g.seats {
		if seat == nil {
			continue
		}
		s.Seats[i] = &SeatSnapshot{
			Identity:    seat.Identity,
			Chips:       seat.chips,
			Bet:         seat.bet,
			Contributed: seat.contributed,
			StartStack:  seat.startStack,
			InHand:      seat.inHand,
			Folded:      seat.folded,
			AllIn:       seat.allIn,
			Acted:       seat.acted,
			Hole:        seat.Hole(),
		}
	}
	return s
}

// Restore rehydrates the table from a checkpoint. The restored state passes
// the same invariant checks as live mutations before it is accepted.
func (g *Game) Restore(snap Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(snap.Seats) != len(g.seats) {
		return errInvalidState("snapshot seat count mismatch")
	}

	seats := make([]*Seat, len(g.seats))
	for i, ss := range snap.Seats {
		if ss == nil {
			continue
		}
		seat := &Seat{
			Identity:    ss.Identity,
			chips:       ss.Chips,
			bet:         ss.Bet,
			contributed: ss.Contributed,
			startStack:  ss.StartStack,
			inHand:      ss.InHand,
			folded:      ss.Folded,
			allIn:       ss.AllIn,
			acted:       ss.Acted,
		}
		seat.hole.Init(ss.Hole)
		seats[i] = seat
	}

	g.seats = seats
	g.handCount = snap.HandCount
	g.stage = snap.Stage
	g.dealerIndex = snap.DealerIndex
	g.turnIndex = snap.TurnIndex
	g.pot = snap.Pot
	g.betToCall = snap.BetToCall
	g.lastRaise = snap.LastRaise
	g.deck.Init(snap.Deck)
	g.community.Init(snap.Community)
	g.lastResult = nil
	g.halted = false

	return g.checkInvariantsLocked()
}
