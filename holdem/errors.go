package holdem

import "errors"

var (
	ErrOutOfTurn       = errors.New("action out of turn")
	ErrNoBettingRound  = errors.New("no betting round in progress")
	ErrHandInProgress  = errors.New("hand in progress")
	ErrNotEnoughSeated = errors.New("not enough players to start")
	ErrSeatOccupied    = errors.New("seat already occupied")
	ErrSeatEmpty       = errors.New("seat is empty")
	ErrAlreadySeated   = errors.New("identity already seated")
	ErrCheckNotAllowed = errors.New("cannot check facing a bet")
	ErrRaiseBelowMin   = errors.New("raise below minimum")
	ErrTableHalted     = errors.New("table halted")
)

// InvariantError is fatal: the table halts and the last snapshot is kept
// for forensics.
type InvariantError string

func (e InvariantError) Error() string { return "invariant violation: " + string(e) }

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func errInvalidState(msg string) error { return InvalidStateError(msg) }
