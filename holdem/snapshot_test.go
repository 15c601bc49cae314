package holdem

import (
	"encoding/json"
	"testing"
)

func TestSnapshotRestore_MidHandRoundTrip(t *testing.T) {
	g := newTestGame(t, 6, 1000, 600, 1400)
	stackDeck(t, g,
		"Ah", "Kh", "Qh", "Ad", "Kd", "Qd",
		"2s", "8c", "9d", "Jh", "3s",
	)

	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	// Drive to mid-flop with real contributions.
	if _, err := g.Act(0, ActionRaise, 6); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Act(1, ActionCall, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Act(2, ActionCall, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Act(1, ActionRaise, 10); err != nil {
		t.Fatal(err)
	}

	snap := g.Snapshot()
	if snap.Stage != StageFlop {
		t.Fatalf("stage = %v, want flop", snap.Stage)
	}

	// The checkpoint is the JSON form of the snapshot; round-trip it the way
	// the session layer does.
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var loaded Snapshot
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	restored, err := NewGame(g.Config())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if err := restored.Restore(loaded); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	rsnap := restored.Snapshot()
	if rsnap.Stage != snap.Stage || rsnap.Pot != snap.Pot ||
		rsnap.TurnIndex != snap.TurnIndex || rsnap.BetToCall != snap.BetToCall {
		t.Fatalf("restored state differs: %+v vs %+v", rsnap, snap)
	}
	if len(rsnap.Deck) != len(snap.Deck) {
		t.Fatalf("deck not restored: %d vs %d", len(rsnap.Deck), len(snap.Deck))
	}
	for i := range snap.Seats {
		a, b := snap.Seats[i], rsnap.Seats[i]
		if (a == nil) != (b == nil) {
			t.Fatalf("seat %d occupancy differs", i)
		}
		if a == nil {
			continue
		}
		if a.Chips != b.Chips || a.Bet != b.Bet || a.Contributed != b.Contributed {
			t.Fatalf("seat %d differs: %+v vs %+v", i, a, b)
		}
		if len(a.Hole) != len(b.Hole) {
			t.Fatalf("seat %d hole not restored", i)
		}
	}

	// Play the restored hand to completion: no duplicate cards, no lost
	// chips. Remaining action: seats 2 and 0 face the flop raise.
	total := totalChips(restored)
	if _, err := restored.Act(2, ActionCall, 0); err != nil {
		t.Fatalf("call after restore: %v", err)
	}
	if _, err := restored.Act(0, ActionFold, 0); err != nil {
		t.Fatalf("fold after restore: %v", err)
	}
	script := []struct {
		seat int
		kind ActionKind
	}{
		{1, ActionCheck}, {2, ActionCheck},
		{1, ActionCheck}, {2, ActionCheck},
	}
	var result *Settlement
	for _, step := range script {
		var err error
		result, err = restored.Act(step.seat, step.kind, 0)
		if err != nil {
			t.Fatalf("%v by %d after restore: %v", step.kind, step.seat, err)
		}
	}
	if result == nil {
		t.Fatalf("expected settlement")
	}
	if totalChips(restored) != total {
		t.Fatalf("chips lost across restore: %d != %d", totalChips(restored), total)
	}
	if restored.Halted() {
		t.Fatalf("restored table halted")
	}
}

func TestRestoreRejectsCorruptDeck(t *testing.T) {
	g := newTestGame(t, 6, 1000, 1000)
	if _, err := g.StartHand(); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	snap := g.Snapshot()
	// Duplicate a hole card into the deck.
	snap.Deck[0] = snap.Seats[0].Hole[0]

	restored, err := NewGame(g.Config())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if err := restored.Restore(snap); err == nil {
		t.Fatalf("expected restore to reject a duplicated card")
	}
}
