package holdem

import (
	"crypto/rand"
	"encoding/binary"

	"holdem-table/card"
)

// shuffleDeck performs a Fisher-Yates shuffle driven by crypto/rand.
// Deck unpredictability is a correctness requirement, not a UX choice;
// an entropy failure is unrecoverable.
func shuffleDeck(cards []card.Card) {
	for i := len(cards) - 1; i > 0; i-- {
		j := int(cryptoUint64() % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
}

func cryptoUint64() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("entropy source unavailable: " + err.Error())
	}
	return binary.BigEndian.Uint64(buf[:])
}
