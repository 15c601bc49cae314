package card

import (
	"encoding/json"
	"testing"
)

func TestDeckIs52Distinct(t *testing.T) {
	deck := Deck()
	if len(deck) != 52 {
		t.Fatalf("deck size = %d", len(deck))
	}
	seen := make(map[Card]bool, 52)
	for _, c := range deck {
		if !c.Valid() {
			t.Fatalf("invalid card in deck: %#x", byte(c))
		}
		if seen[c] {
			t.Fatalf("duplicate card %s", c)
		}
		seen[c] = true
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	for _, c := range Deck() {
		parsed, err := Parse(c.String())
		if err != nil {
			t.Fatalf("parse %q: %v", c.String(), err)
		}
		if parsed != c {
			t.Fatalf("round trip %s -> %s", c, parsed)
		}
	}
}

func TestParseForms(t *testing.T) {
	cases := []struct {
		in   string
		rank byte
		suit Suit
	}{
		{"As", 14, Spade},
		{"as", 14, Spade},
		{"Td", 10, Diamond},
		{"10h", 10, Heart},
		{"2c", 2, Club},
		{"KH", 13, Heart},
	}
	for _, tc := range cases {
		c, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.in, err)
		}
		if c.Rank() != tc.rank || c.Suit() != tc.suit {
			t.Fatalf("parse %q = %s", tc.in, c)
		}
	}

	for _, bad := range []string{"", "A", "1s", "Ax", "15h"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("parse %q should fail", bad)
		}
	}
}

func TestJSONWireForm(t *testing.T) {
	hand := List{Make(14, Spade), Make(10, Diamond)}
	data, err := json.Marshal(hand)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `["As","Td"]` {
		t.Fatalf("wire form = %s", data)
	}

	var back List
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 || back[0] != hand[0] || back[1] != hand[1] {
		t.Fatalf("round trip = %v", back)
	}
}

func TestListPop(t *testing.T) {
	var l List
	l.Init([]Card{Make(2, Spade), Make(3, Spade), Make(4, Spade)})

	if c := l.Pop(); c != Make(2, Spade) {
		t.Fatalf("Pop = %s, want top of deck", c)
	}
	cards, ok := l.PopN(2)
	if !ok || len(cards) != 2 || cards[0] != Make(3, Spade) {
		t.Fatalf("PopN = %v", cards)
	}
	if _, ok := l.PopN(1); ok {
		t.Fatalf("PopN past end should fail")
	}
}
