// Package protocol defines the JSON message surface between the table engine
// and its clients. Cards travel as strings ("As", "Td"); stages and action
// kinds as their lowercase names.
package protocol

import (
	"encoding/json"
	"fmt"

	"holdem-table/card"
	"holdem-table/holdem"
)

// Client → server message types.
const (
	ClientAuthenticate = "authenticate_with_ticket"
	ClientSit          = "sit"
	ClientAction       = "action"
	ClientLeave        = "leave"
)

// Server → client message types.
const (
	ServerAuthOK       = "auth_ok"
	ServerAuthError    = "auth_error"
	ServerSat          = "sat"
	ServerErrorMsg     = "error_msg"
	ServerTableState   = "table_state"
	ServerPrivateState = "private_state"
	ServerAutoFold     = "auto_fold"
)

type ClientMessage struct {
	Type      string  `json:"type"`
	Ticket    string  `json:"ticket,omitempty"`
	SeatIndex *int    `json:"seatIndex,omitempty"`
	Action    *Action `json:"action,omitempty"`
}

type Action struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount,omitempty"`
}

func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("malformed message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message missing type")
	}
	return &msg, nil
}

type AuthOK struct {
	Type     string `json:"type"`
	TableID  string `json:"tableId"`
	Identity string `json:"identity"`
}

type AuthError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type Sat struct {
	Type      string `json:"type"`
	SeatIndex int    `json:"seatIndex"`
}

type ErrorMsg struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type AutoFold struct {
	Type      string `json:"type"`
	SeatIndex int    `json:"seatIndex"`
}

// SeatState is the public projection of one seat: no hole cards, no socket
// handle, no reclaim deadline.
type SeatState struct {
	Identity         string `json:"identity"`
	Chips            int64  `json:"chips"`
	CurrentBet       int64  `json:"currentBet"`
	TotalContributed int64  `json:"totalContributed"`
	Folded           bool   `json:"folded"`
	AllIn            bool   `json:"allIn"`
	Connected        bool   `json:"connected"`
}

type TableState struct {
	Type             string       `json:"type"`
	ID               string       `json:"id"`
	Seats            []*SeatState `json:"seats"`
	Community        []card.Card  `json:"community"`
	Pot              int64        `json:"pot"`
	Stage            string       `json:"stage"`
	CurrentBetToCall int64        `json:"currentBetToCall"`
	CurrentTurnIndex int          `json:"currentTurnIndex"`
	DealerIndex      int          `json:"dealerIndex"`
	LastRaiseAmount  int64        `json:"lastRaiseAmount"`
	ActionTimeoutMs  int64        `json:"actionTimeoutMs"`
	Extras           *Extras      `json:"extras,omitempty"`
}

type Extras struct {
	Showdown *ShowdownExtras `json:"showdown,omitempty"`
}

type ShowdownExtras struct {
	Winners []PotWinners `json:"winners"`
	Pots    []PotDetail  `json:"pots"`
	Reveals []Reveal     `json:"reveals,omitempty"`
	Board   []card.Card  `json:"board"`
}

type PotWinners struct {
	PotIndex int   `json:"potIndex"`
	Winners  []int `json:"winners"`
}

type PotDetail struct {
	Amount     int64   `json:"amount"`
	Eligible   []int   `json:"eligible"`
	Winners    []int   `json:"winners"`
	WinAmounts []int64 `json:"winAmounts"`
}

type Reveal struct {
	SeatIndex int         `json:"seatIndex"`
	Hole      []card.Card `json:"hole"`
	Rank      string      `json:"rank"`
	BestFive  []card.Card `json:"bestFive"`
}

type PrivateState struct {
	Type    string      `json:"type"`
	MyIndex int         `json:"myIndex"`
	MyHole  []card.Card `json:"myHole"`
	TimeMs  int64       `json:"timeMs"`
}

// BuildTableState projects a snapshot into the public broadcast frame.
// connected answers whether an identity currently has a live socket.
func BuildTableState(id string, snap holdem.Snapshot, actionTimeoutMs int64, connected func(identity string) bool, extras *Extras) *TableState {
	ts := &TableState{
		Type:             ServerTableState,
		ID:               id,
		Seats:            make([]*SeatState, len(snap.Seats)),
		Community:        append([]card.Card{}, snap.Community...),
		Pot:              snap.Pot,
		Stage:            snap.Stage.String(),
		CurrentBetToCall: snap.BetToCall,
		CurrentTurnIndex: snap.TurnIndex,
		DealerIndex:      snap.DealerIndex,
		LastRaiseAmount:  snap.LastRaise,
		ActionTimeoutMs:  actionTimeoutMs,
		Extras:           extras,
	}
	for i, seat := range snap.Seats {
		if seat == nil {
			continue
		}
		ts.Seats[i] = &SeatState{
			Identity:         seat.Identity,
			Chips:            seat.Chips,
			CurrentBet:       seat.Bet,
			TotalContributed: seat.Contributed,
			Folded:           seat.Folded,
			AllIn:            seat.AllIn,
			Connected:        connected(seat.Identity),
		}
	}
	return ts
}

// BuildPrivateState projects one seat's private view.
func BuildPrivateState(snap holdem.Snapshot, seatIndex int, timeMs int64) *PrivateState {
	ps := &PrivateState{
		Type:    ServerPrivateState,
		MyIndex: seatIndex,
		MyHole:  []card.Card{},
		TimeMs:  timeMs,
	}
	if seatIndex >= 0 && seatIndex < len(snap.Seats) && snap.Seats[seatIndex] != nil {
		ps.MyHole = append(ps.MyHole, snap.Seats[seatIndex].Hole...)
	}
	return ps
}

// BuildShowdownExtras converts a settlement into the completion-frame extras.
func BuildShowdownExtras(res *holdem.Settlement) *Extras {
	if res == nil {
		return nil
	}
	sd := &ShowdownExtras{
		Board: append([]card.Card{}, res.Board...),
	}
	for i, pot := range res.Pots {
		sd.Winners = append(sd.Winners, PotWinners{
			PotIndex: i,
			Winners:  append([]int{}, pot.Winners...),
		})
		sd.Pots = append(sd.Pots, PotDetail{
			Amount:     pot.Amount,
			Eligible:   append([]int{}, pot.Eligible...),
			Winners:    append([]int{}, pot.Winners...),
			WinAmounts: append([]int64{}, pot.WinAmounts...),
		})
	}
	for _, r := range res.Reveals {
		sd.Reveals = append(sd.Reveals, Reveal{
			SeatIndex: r.Seat,
			Hole:      append([]card.Card{}, r.Hole...),
			Rank:      r.Rank,
			BestFive:  append([]card.Card{}, r.BestFive...),
		})
	}
	return &Extras{Showdown: sd}
}

// Encode marshals a server frame.
func Encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Server frames are plain structs; a marshal failure is a bug.
		panic(fmt.Sprintf("protocol encode: %v", err))
	}
	return data
}

func NewAuthOK(tableID, identity string) []byte {
	return Encode(AuthOK{Type: ServerAuthOK, TableID: tableID, Identity: identity})
}

func NewAuthError(msg string) []byte {
	return Encode(AuthError{Type: ServerAuthError, Error: msg})
}

func NewSat(seatIndex int) []byte {
	return Encode(Sat{Type: ServerSat, SeatIndex: seatIndex})
}

func NewErrorMsg(msg string) []byte {
	return Encode(ErrorMsg{Type: ServerErrorMsg, Error: msg})
}

func NewAutoFold(seatIndex int) []byte {
	return Encode(AutoFold{Type: ServerAutoFold, SeatIndex: seatIndex})
}
