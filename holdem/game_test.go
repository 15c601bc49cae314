package holdem

import (
	"errors"
	"testing"

	"holdem-table/card"
)

// stackDeck replaces the game's shuffle with one that moves the named cards
// to the top of the deck in order. Deal order: two round-robin passes over
// dealt seats ascending from seat 0, then the board off the top.
func stackDeck(t *testing.T, g *Game, names ...string) {
	t.Helper()
	top := mustCards(t, names...)
	g.shuffle = func(cards []card.Card) {
		rest := make([]card.Card, 0, len(cards))
		for _, c := range cards {
			onTop := false
			for _, want := range top {
				if c == want {
					onTop = true
					break
				}
			}
			if !onTop {
				rest = append(rest, c)
			}
		}
		copy(cards, top)
		copy(cards[len(top):], rest)
	}
}

func newTestGame(t *testing.T, seats int, stacks ...int64) *Game {
	t.Helper()
	g, err := NewGame(Config{Seats: seats, MinPlayers: 2, SmallBlind: 1, BigBlind: 2})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	identities := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	for i, stack := range stacks {
		if err := g.Sit(i, identities[i], stack); err != nil {
			t.Fatalf("Sit %d: %v", i, err)
		}
	}
	return g
}

func totalChips(g *Game) int64 {
	snap := g.Snapshot()
	total := snap.Pot
	for _, s := range snap.Seats {
		if s != nil {
			total += s.Chips
		}
	}
	return total
}

func TestHeadsUpFoldPreflop(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000)

	result, err := g.StartHand()
	if err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if result != nil {
		t.Fatalf("unexpected immediate settlement")
	}

	snap := g.Snapshot()
	if snap.Stage != StagePreflop {
		t.Fatalf("stage = %v, want preflop", snap.Stage)
	}
	// Heads-up: button is small blind and acts first preflop.
	if snap.DealerIndex != 0 || snap.TurnIndex != 0 {
		t.Fatalf("dealer=%d turn=%d, want button 0 to act", snap.DealerIndex, snap.TurnIndex)
	}
	if snap.Seats[0].Bet != 1 || snap.Seats[1].Bet != 2 {
		t.Fatalf("blinds = %d/%d, want 1/2", snap.Seats[0].Bet, snap.Seats[1].Bet)
	}

	result, err = g.Act(0, ActionFold, 0)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if result == nil {
		t.Fatalf("expected settlement on fold-out")
	}
	if result.Showdown {
		t.Fatalf("win by fold must not be a showdown")
	}
	if len(result.Board) != 0 {
		t.Fatalf("no board cards expected, got %d", len(result.Board))
	}

	snap = g.Snapshot()
	if snap.Stage != StageWaiting || snap.Pot != 0 {
		t.Fatalf("stage=%v pot=%d, want waiting/0", snap.Stage, snap.Pot)
	}
	if snap.Seats[0].Chips != 999 || snap.Seats[1].Chips != 1001 {
		t.Fatalf("stacks = %d/%d, want 999/1001", snap.Seats[0].Chips, snap.Seats[1].Chips)
	}
}

func TestHeadsUpPostflopFirstToAct(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	// SB (button) calls; BB still owes an action (the option).
	if _, err := g.Act(0, ActionCall, 0); err != nil {
		t.Fatalf("sb call: %v", err)
	}
	snap := g.Snapshot()
	if snap.Stage != StagePreflop || snap.TurnIndex != 1 {
		t.Fatalf("stage=%v turn=%d, want preflop option on BB", snap.Stage, snap.TurnIndex)
	}

	if _, err := g.Act(1, ActionCheck, 0); err != nil {
		t.Fatalf("bb check: %v", err)
	}
	snap = g.Snapshot()
	if snap.Stage != StageFlop {
		t.Fatalf("stage = %v, want flop", snap.Stage)
	}
	if len(snap.Community) != 3 {
		t.Fatalf("flop dealt %d cards", len(snap.Community))
	}
	// Postflop the non-button acts first heads-up.
	if snap.TurnIndex != 1 {
		t.Fatalf("flop turn = %d, want 1", snap.TurnIndex)
	}
}

func TestMinimumRaiseRule(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	snap := g.Snapshot()
	if snap.DealerIndex != 0 || snap.TurnIndex != 0 {
		t.Fatalf("dealer=%d turn=%d, want UTG=button with 3 players", snap.DealerIndex, snap.TurnIndex)
	}

	// Raise to 6: increment 4 over the big blind.
	if _, err := g.Act(0, ActionRaise, 4); err != nil {
		t.Fatalf("raise to 6: %v", err)
	}
	snap = g.Snapshot()
	if snap.BetToCall != 6 || snap.LastRaise != 4 {
		t.Fatalf("betToCall=%d lastRaise=%d, want 6/4", snap.BetToCall, snap.LastRaise)
	}

	// Raise to 9 (increment 3) is below the minimum and must be rejected
	// without mutating state.
	if _, err := g.Act(1, ActionRaise, 3); !errors.Is(err, ErrRaiseBelowMin) {
		t.Fatalf("short raise: err = %v, want ErrRaiseBelowMin", err)
	}
	after := g.Snapshot()
	if after.BetToCall != 6 || after.TurnIndex != 1 || after.Pot != snap.Pot {
		t.Fatalf("rejected raise mutated state: %+v", after)
	}

	// Raise to 10 (increment 4) is legal.
	if _, err := g.Act(1, ActionRaise, 4); err != nil {
		t.Fatalf("raise to 10: %v", err)
	}
	snap = g.Snapshot()
	if snap.BetToCall != 10 || snap.LastRaise != 4 {
		t.Fatalf("betToCall=%d lastRaise=%d, want 10/4", snap.BetToCall, snap.LastRaise)
	}
}

func TestRaiseReopensAction(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	// Button calls, SB calls, BB raises: the round must not close until both
	// callers respond to the raise.
	if _, err := g.Act(0, ActionCall, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Act(1, ActionCall, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Act(2, ActionRaise, 4); err != nil {
		t.Fatal(err)
	}

	snap := g.Snapshot()
	if snap.Stage != StagePreflop {
		t.Fatalf("raise closed the round: stage = %v", snap.Stage)
	}
	if _, err := g.Act(0, ActionCall, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Act(1, ActionCall, 0); err != nil {
		t.Fatal(err)
	}
	if snap = g.Snapshot(); snap.Stage != StageFlop {
		t.Fatalf("stage = %v, want flop after raise is matched", snap.Stage)
	}
}

func TestCheckFacingBetRejected(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if _, err := g.Act(0, ActionCheck, 0); !errors.Is(err, ErrCheckNotAllowed) {
		t.Fatalf("check facing bet: err = %v, want ErrCheckNotAllowed", err)
	}
	snap := g.Snapshot()
	if snap.TurnIndex != 0 || snap.Pot != 3 {
		t.Fatalf("rejected check mutated state")
	}
}

func TestOutOfTurnRejected(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if _, err := g.Act(1, ActionCall, 0); !errors.Is(err, ErrOutOfTurn) {
		t.Fatalf("out of turn: err = %v, want ErrOutOfTurn", err)
	}
}

func TestChipConservationThroughHand(t *testing.T) {
	g := newTestGame(t, 6, 1000, 600, 1400)
	stackDeck(t, g,
		"Ah", "Kh", "Qh", "Ad", "Kd", "Qd", // holes
		"2s", "8c", "9d", "Jh", "3s", // board
	)

	before := totalChips(g)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	script := []struct {
		seat int
		kind ActionKind
		amt  int64
	}{
		{0, ActionRaise, 6}, {1, ActionCall, 0}, {2, ActionCall, 0},
		{1, ActionCheck, 0}, {2, ActionRaise, 10}, {0, ActionCall, 0}, {1, ActionFold, 0},
		{2, ActionCheck, 0}, {0, ActionCheck, 0},
		{2, ActionCheck, 0}, {0, ActionCheck, 0},
	}
	var result *Settlement
	for i, step := range script {
		if totalChips(g) != before {
			t.Fatalf("step %d: chips not conserved", i)
		}
		var err error
		result, err = g.Act(step.seat, step.kind, step.amt)
		if err != nil {
			t.Fatalf("step %d (%v by %d): %v", i, step.kind, step.seat, err)
		}
	}
	if result == nil {
		t.Fatalf("expected settlement at river")
	}
	if totalChips(g) != before {
		t.Fatalf("chips not conserved after settlement: %d != %d", totalChips(g), before)
	}
	if g.Halted() {
		t.Fatalf("table halted")
	}
}

func TestSitDuringHandJoinsNextHand(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if err := g.Sit(3, "carol", 1000); err != nil {
		t.Fatalf("mid-hand sit: %v", err)
	}

	snap := g.Snapshot()
	if snap.Seats[3] == nil || snap.Seats[3].InHand {
		t.Fatalf("late seat must wait for the next hand")
	}
	if len(snap.Seats[3].Hole) != 0 {
		t.Fatalf("late seat was dealt cards")
	}
}

func TestLeaveDuringHandRejected(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if err := g.Leave(1); !errors.Is(err, ErrHandInProgress) {
		t.Fatalf("mid-hand leave: err = %v, want ErrHandInProgress", err)
	}

	if _, err := g.Act(0, ActionFold, 0); err != nil {
		t.Fatalf("fold: %v", err)
	}
	if err := g.Leave(1); err != nil {
		t.Fatalf("leave after hand: %v", err)
	}
}

func TestDuplicateIdentityRejected(t *testing.T) {
	g := newTestGame(t, 6, 1000)
	if err := g.Sit(2, "alice", 1000); !errors.Is(err, ErrAlreadySeated) {
		t.Fatalf("duplicate identity: err = %v, want ErrAlreadySeated", err)
	}
}

func TestButtonRotates(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000, 1000)
	for want := 0; want < 3; want++ {
		if _, err := g.StartHand(); err != nil {
			t.Fatalf("StartHand: %v", err)
		}
		snap := g.Snapshot()
		if snap.DealerIndex != want {
			t.Fatalf("hand %d: dealer = %d, want %d", want+1, snap.DealerIndex, want)
		}
		turn := snap.TurnIndex
		if _, err := g.Act(turn, ActionFold, 0); err != nil {
			t.Fatalf("fold: %v", err)
		}
		if snap = g.Snapshot(); snap.Stage == StageWaiting {
			continue
		}
		// Three-handed: first fold leaves two; fold the next to act too.
		if _, err := g.Act(snap.TurnIndex, ActionFold, 0); err != nil {
			t.Fatalf("second fold: %v", err)
		}
	}
}
