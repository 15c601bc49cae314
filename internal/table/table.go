// Package table is the session layer: it owns the socket↔seat mapping,
// action timers, the disconnect reclaim window, broadcast policy and durable
// checkpointing around a single holdem.Game.
package table

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"holdem-table/holdem"
	"holdem-table/internal/auth"
	"holdem-table/internal/protocol"
	"holdem-table/internal/store"
)

type Config struct {
	SeatCount     int
	SmallBlind    int64
	BigBlind      int64
	MinPlayers    int
	StartingStack int64

	ActionTimeout   time.Duration
	ReconnectWindow time.Duration
	NextHandDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.SeatCount == 0 {
		c.SeatCount = 6
	}
	if c.SmallBlind == 0 {
		c.SmallBlind = 1
	}
	if c.BigBlind == 0 {
		c.BigBlind = 2
	}
	if c.MinPlayers == 0 {
		c.MinPlayers = 2
	}
	if c.StartingStack == 0 {
		c.StartingStack = 1000
	}
	if c.ActionTimeout == 0 {
		c.ActionTimeout = 30 * time.Second
	}
	if c.ReconnectWindow == 0 {
		c.ReconnectWindow = 60 * time.Second
	}
	if c.NextHandDelay == 0 {
		c.NextHandDelay = 2 * time.Second
	}
	return c
}

// Event types for the actor message queue.
type EventType int

const (
	EventAttach EventType = iota
	EventDetach
	EventSit
	EventLeave
	EventAction
	EventClose
)

// Event represents one message to the table actor.
type Event struct {
	Type      EventType
	Identity  string
	SessionID string
	SeatIndex int
	Action    holdem.ActionKind
	Amount    int64
	Response  chan error
}

var (
	ErrTableClosed = errors.New("table closed")
	ErrBanned      = errors.New("identity is banned")
	ErrNotSeated   = errors.New("identity not seated")
)

const tickInterval = 500 * time.Millisecond

// Table serializes all state-mutating operations through its actor loop;
// timer expiries are tick events on the same loop, so a stale fire can never
// mutate state outside the serializer.
type Table struct {
	ID  string
	cfg Config

	mu       sync.Mutex
	game     *holdem.Game
	closed   bool
	halted   bool
	stopOnce sync.Once

	// identity -> live session id; absence means disconnected.
	sessions map[string]string
	// seat index -> auto-vacate instant for disconnected seats.
	reclaimAt map[int]time.Time
	// seats that asked to leave mid-hand; vacated at hand end.
	pendingLeave map[int]bool

	actionSeat     int
	actionDeadline time.Time
	nextHandAt     time.Time

	events chan Event
	done   chan struct{}

	send      func(sessionID string, data []byte)
	auth      auth.Service
	snapshots store.SnapshotStore
	history   store.HistoryStore
}

func New(
	id string,
	cfg Config,
	sendFn func(sessionID string, data []byte),
	authService auth.Service,
	snapshots store.SnapshotStore,
	history store.HistoryStore,
) (*Table, error) {
	cfg = cfg.withDefaults()

	game, err := holdem.NewGame(holdem.Config{
		Seats:      cfg.SeatCount,
		MinPlayers: cfg.MinPlayers,
		SmallBlind: cfg.SmallBlind,
		BigBlind:   cfg.BigBlind,
	})
	if err != nil {
		return nil, err
	}

	t := &Table{
		ID:           id,
		cfg:          cfg,
		game:         game,
		sessions:     make(map[string]string),
		reclaimAt:    make(map[int]time.Time),
		pendingLeave: make(map[int]bool),
		actionSeat:   holdem.InvalidSeat,
		events:       make(chan Event, 256),
		done:         make(chan struct{}),
		send:         sendFn,
		auth:         authService,
		snapshots:    snapshots,
		history:      history,
	}

	t.rehydrate()

	go t.run()
	log.Printf("[Table %s] Created (seats=%d, blinds=%d/%d)", id, cfg.SeatCount, cfg.SmallBlind, cfg.BigBlind)
	return t, nil
}

// rehydrate restores the table from its checkpoint key, if present. Every
// seat starts disconnected with a full reclaim window; the action timer for
// a resumed betting round starts fresh.
func (t *Table) rehydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := t.snapshots.LoadSnapshot(ctx, store.SnapshotKey(t.ID))
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("[Table %s] snapshot load failed: %v", t.ID, err)
		return
	}

	var snap holdem.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("[Table %s] snapshot decode failed: %v", t.ID, err)
		return
	}
	if err := t.game.Restore(snap); err != nil {
		log.Printf("[Table %s] snapshot restore rejected: %v", t.ID, err)
		return
	}

	now := time.Now()
	for i, seat := range snap.Seats {
		if seat != nil {
			t.reclaimAt[i] = now.Add(t.cfg.ReconnectWindow)
		}
	}
	if snap.Stage.IsBetting() && snap.TurnIndex != holdem.InvalidSeat {
		t.actionSeat = snap.TurnIndex
		t.actionDeadline = now.Add(t.cfg.ActionTimeout)
	}
	log.Printf("[Table %s] Rehydrated: hand=%d stage=%v", t.ID, snap.HandCount, snap.Stage)
}

func (t *Table) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-t.events:
			err := t.handleEvent(event)
			if event.Response != nil {
				event.Response <- err
			}
		case now := <-ticker.C:
			t.tick(now)
		case <-t.done:
			log.Printf("[Table %s] Actor stopped", t.ID)
			return
		}
	}
}

func (t *Table) handleEvent(e Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed && e.Type != EventClose {
		return ErrTableClosed
	}
	if t.halted && e.Type != EventClose && e.Type != EventDetach {
		return holdem.ErrTableHalted
	}

	switch e.Type {
	case EventAttach:
		return t.handleAttach(e.Identity, e.SessionID)
	case EventDetach:
		return t.handleDetach(e.Identity, e.SessionID)
	case EventSit:
		return t.handleSit(e.Identity, e.SeatIndex)
	case EventLeave:
		return t.handleLeave(e.Identity)
	case EventAction:
		return t.handleAction(e.Identity, e.SeatIndex, e.Action, e.Amount)
	case EventClose:
		t.stopLocked()
		return nil
	default:
		return fmt.Errorf("unknown event type: %d", e.Type)
	}
}

// SubmitEvent sends an event to the actor and waits for its result.
func (t *Table) SubmitEvent(e Event) error {
	if e.Response == nil {
		e.Response = make(chan error, 1)
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTableClosed
	}

	select {
	case t.events <- e:
	case <-t.done:
		return ErrTableClosed
	}

	select {
	case err := <-e.Response:
		return err
	case <-t.done:
		return ErrTableClosed
	}
}

func (t *Table) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *Table) stopLocked() {
	t.closed = true
	t.nextHandAt = time.Time{}
	t.clearActionTimerLocked()
	t.stopOnce.Do(func() { close(t.done) })
}

// --- connection lifecycle ---

func (t *Table) handleAttach(identity, sessionID string) error {
	t.sessions[identity] = sessionID

	seat := t.game.SeatOf(identity)
	if seat != holdem.InvalidSeat {
		// Rebind to the reserved seat: reclaim window off, private view
		// re-emitted immediately, everyone sees the seat come back.
		delete(t.reclaimAt, seat)
		log.Printf("[Table %s] %s rebound to seat %d", t.ID, identity, seat)
		t.broadcastStateLocked(nil)
		return nil
	}

	snap := t.game.Snapshot()
	t.sendToSession(sessionID, protocol.Encode(t.buildTableStateLocked(snap, nil)))
	return nil
}

func (t *Table) handleDetach(identity, sessionID string) error {
	if t.sessions[identity] != sessionID {
		// A newer socket already took over this identity.
		return nil
	}
	delete(t.sessions, identity)

	seat := t.game.SeatOf(identity)
	if seat != holdem.InvalidSeat {
		// The seat is not vacated: it is reserved for the reclaim window and
		// keeps its action timer, so a stalled seat folds on schedule.
		t.reclaimAt[seat] = time.Now().Add(t.cfg.ReconnectWindow)
		log.Printf("[Table %s] %s disconnected, seat %d reserved", t.ID, identity, seat)
		// Others see the seat go dark.
		t.broadcastStateLocked(nil)
	}
	return nil
}

// --- seating ---

func (t *Table) handleSit(identity string, seatIndex int) error {
	if t.auth != nil && t.auth.IsBanned(identity) {
		return ErrBanned
	}
	if err := t.game.Sit(seatIndex, identity, t.cfg.StartingStack); err != nil {
		return err
	}
	log.Printf("[Table %s] %s sat at seat %d with %d", t.ID, identity, seatIndex, t.cfg.StartingStack)

	if sessionID, ok := t.sessions[identity]; ok {
		t.sendToSession(sessionID, protocol.NewSat(seatIndex))
	}
	t.broadcastStateLocked(nil)
	t.persistLocked()
	t.maybeScheduleHandLocked(time.Now())
	return nil
}

func (t *Table) handleLeave(identity string) error {
	seat := t.game.SeatOf(identity)
	if seat == holdem.InvalidSeat {
		return ErrNotSeated
	}
	err := t.game.Leave(seat)
	if errors.Is(err, holdem.ErrHandInProgress) {
		// Deferred: the seat plays out (or times out) and is vacated at hand
		// end. Chips already contributed stay in the pot.
		t.pendingLeave[seat] = true
		log.Printf("[Table %s] %s leave deferred to hand end (seat %d)", t.ID, identity, seat)
		return nil
	}
	if err != nil {
		return err
	}
	t.seatVacatedLocked(seat, identity)
	t.broadcastStateLocked(nil)
	t.persistLocked()
	return nil
}

func (t *Table) seatVacatedLocked(seat int, identity string) {
	delete(t.reclaimAt, seat)
	delete(t.pendingLeave, seat)
	log.Printf("[Table %s] seat %d vacated (%s)", t.ID, seat, identity)
}

// --- actions ---

func (t *Table) handleAction(identity string, seatIndex int, kind holdem.ActionKind, amount int64) error {
	if t.game.SeatOf(identity) != seatIndex {
		return fmt.Errorf("seat %d does not belong to caller", seatIndex)
	}
	return t.applyActionLocked(seatIndex, kind, amount)
}

func (t *Table) applyActionLocked(seatIndex int, kind holdem.ActionKind, amount int64) error {
	result, err := t.game.Act(seatIndex, kind, amount)
	var invariant holdem.InvariantError
	if errors.As(err, &invariant) {
		t.haltLocked(invariant)
		return err
	}
	if err != nil {
		// Rejected action: no mutation, and the running action timer keeps
		// only its remaining time, so spamming illegal actions cannot stall
		// the hand.
		return err
	}

	if t.actionSeat == seatIndex {
		t.clearActionTimerLocked()
	}

	if result != nil {
		t.handleHandEndLocked(result)
		return nil
	}

	t.armActionTimerLocked()
	t.broadcastStateLocked(nil)
	t.persistLocked()
	return nil
}

func (t *Table) handleHandEndLocked(result *holdem.Settlement) {
	log.Printf("[Table %s] Hand %d settled: pot=%d pots=%d showdown=%v",
		t.ID, result.HandID, result.Pot, len(result.Pots), result.Showdown)

	t.clearActionTimerLocked()

	// Completion record for the external hand store.
	rec := store.HandRecord{
		TableID: t.ID,
		Dealer:  result.Dealer,
		Board:   result.Board,
		Pot:     result.Pot,
	}
	for i, pot := range result.Pots {
		rec.Winners = append(rec.Winners, store.PotWinners{
			PotIndex: i,
			Winners:  append([]int{}, pot.Winners...),
		})
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.history.AppendHandRecord(ctx, time.Now(), rec); err != nil {
			log.Printf("[Table %s] hand record write failed: %v", t.ID, err)
		}
	}()

	// Deferred leaves and busted stacks vacate between hands.
	snap := t.game.Snapshot()
	for i, seat := range snap.Seats {
		if seat == nil {
			continue
		}
		if !t.pendingLeave[i] && seat.Chips > 0 {
			continue
		}
		if err := t.game.Leave(i); err != nil {
			log.Printf("[Table %s] post-hand vacate of seat %d failed: %v", t.ID, i, err)
			continue
		}
		t.seatVacatedLocked(i, seat.Identity)
	}

	t.broadcastStateLocked(protocol.BuildShowdownExtras(result))
	t.persistLocked()
	t.maybeScheduleHandLocked(time.Now())
}

// --- timers, driven from the actor tick ---

func (t *Table) tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.halted {
		return
	}
	// A hand scheduled by this tick's own expiry processing waits for the
	// next tick.
	scheduled := t.nextHandAt

	t.expireActionTimerLocked(now)
	t.expireReclaimsLocked(now)
	if !scheduled.IsZero() && !now.Before(scheduled) {
		t.nextHandAt = time.Time{}
		t.startHandLocked()
	}
}

func (t *Table) armActionTimerLocked() {
	snap := t.game.Snapshot()
	if !snap.Stage.IsBetting() || snap.TurnIndex == holdem.InvalidSeat {
		t.clearActionTimerLocked()
		return
	}
	t.actionSeat = snap.TurnIndex
	t.actionDeadline = time.Now().Add(t.cfg.ActionTimeout)
}

func (t *Table) clearActionTimerLocked() {
	t.actionSeat = holdem.InvalidSeat
	t.actionDeadline = time.Time{}
}

func (t *Table) expireActionTimerLocked(now time.Time) {
	if t.actionSeat == holdem.InvalidSeat || t.actionDeadline.IsZero() || now.Before(t.actionDeadline) {
		return
	}

	seat := t.actionSeat
	t.clearActionTimerLocked()

	snap := t.game.Snapshot()
	if snap.TurnIndex != seat {
		// Stale fire; the turn moved on.
		return
	}

	// Auto-check when free, otherwise fold.
	kind := holdem.ActionFold
	if s := snap.Seats[seat]; s != nil && snap.BetToCall == s.Bet {
		kind = holdem.ActionCheck
	}
	log.Printf("[Table %s] action timeout on seat %d -> auto %v", t.ID, seat, kind)
	if kind == holdem.ActionFold {
		t.broadcastFrameLocked(protocol.NewAutoFold(seat))
	}
	if err := t.applyActionLocked(seat, kind, 0); err != nil {
		log.Printf("[Table %s] auto action failed: %v", t.ID, err)
	}
}

func (t *Table) expireReclaimsLocked(now time.Time) {
	for seat, deadline := range t.reclaimAt {
		if now.Before(deadline) {
			continue
		}
		delete(t.reclaimAt, seat)

		snap := t.game.Snapshot()
		if snap.Seats[seat] == nil {
			continue
		}
		identity := snap.Seats[seat].Identity
		if err := t.game.Leave(seat); errors.Is(err, holdem.ErrHandInProgress) {
			t.pendingLeave[seat] = true
			log.Printf("[Table %s] reclaim lapsed mid-hand for seat %d; vacate deferred", t.ID, seat)
			continue
		} else if err != nil {
			log.Printf("[Table %s] reclaim vacate failed for seat %d: %v", t.ID, seat, err)
			continue
		}
		log.Printf("[Table %s] reclaim window lapsed, seat %d vacated (%s)", t.ID, seat, identity)
		t.seatVacatedLocked(seat, identity)
		t.broadcastStateLocked(nil)
		t.persistLocked()
	}
}

// --- hand scheduling ---

func (t *Table) maybeScheduleHandLocked(now time.Time) {
	if !t.game.CanStart() {
		return
	}
	if t.nextHandAt.IsZero() {
		t.nextHandAt = now.Add(t.cfg.NextHandDelay)
	}
}

func (t *Table) startHandLocked() {
	if !t.game.CanStart() {
		return
	}
	result, err := t.game.StartHand()
	if err != nil {
		log.Printf("[Table %s] StartHand failed: %v", t.ID, err)
		return
	}

	snap := t.game.Snapshot()
	log.Printf("[Table %s] Hand %d started. Dealer: %d, Turn: %d", t.ID, snap.HandCount, snap.DealerIndex, snap.TurnIndex)

	if result != nil {
		// Everyone was all-in on the blinds; the hand settled immediately.
		t.handleHandEndLocked(result)
		return
	}

	t.armActionTimerLocked()
	t.broadcastStateLocked(nil)
	t.persistLocked()
}

// --- broadcast & persistence ---

func (t *Table) connectedLocked(identity string) bool {
	_, ok := t.sessions[identity]
	return ok
}

func (t *Table) buildTableStateLocked(snap holdem.Snapshot, extras *protocol.Extras) *protocol.TableState {
	return protocol.BuildTableState(t.ID, snap, t.cfg.ActionTimeout.Milliseconds(), t.connectedLocked, extras)
}

func (t *Table) buildPrivateStateLocked(snap holdem.Snapshot, seat int) *protocol.PrivateState {
	var timeMs int64
	if seat == t.actionSeat && !t.actionDeadline.IsZero() {
		if remaining := time.Until(t.actionDeadline); remaining > 0 {
			timeMs = remaining.Milliseconds()
		}
	}
	return protocol.BuildPrivateState(snap, seat, timeMs)
}

// broadcastStateLocked sends the public view to every attached session and
// each seated identity its private view.
func (t *Table) broadcastStateLocked(extras *protocol.Extras) {
	snap := t.game.Snapshot()
	public := protocol.Encode(t.buildTableStateLocked(snap, extras))

	for identity, sessionID := range t.sessions {
		t.sendToSession(sessionID, public)
		for i, seat := range snap.Seats {
			if seat != nil && seat.Identity == identity {
				t.sendToSession(sessionID, protocol.Encode(t.buildPrivateStateLocked(snap, i)))
				break
			}
		}
	}
}

func (t *Table) broadcastFrameLocked(data []byte) {
	for _, sessionID := range t.sessions {
		t.sendToSession(sessionID, data)
	}
}

func (t *Table) sendToSession(sessionID string, data []byte) {
	if t.send != nil {
		t.send(sessionID, data)
	}
}

// persistLocked checkpoints the full table state. The write is
// fire-and-forget: an acknowledged mutation may be lost if the process dies
// before the write lands, and the next mutation's write supersedes it
// (last-write-wins on the table key).
func (t *Table) persistLocked() {
	snap := t.game.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[Table %s] snapshot encode failed: %v", t.ID, err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.snapshots.SaveSnapshot(ctx, store.SnapshotKey(t.ID), data); err != nil {
			log.Printf("[Table %s] snapshot write failed: %v", t.ID, err)
		}
	}()
}

// haltLocked freezes the table after an engine invariant violation. The last
// durable snapshot is intentionally left in place for forensics.
func (t *Table) haltLocked(err error) {
	t.halted = true
	t.clearActionTimerLocked()
	t.nextHandAt = time.Time{}
	log.Printf("[Table %s] FATAL: %v, table halted", t.ID, err)
	t.broadcastFrameLocked(protocol.NewErrorMsg("table halted"))
}

// Snapshot returns current game state (thread-safe).
func (t *Table) Snapshot() holdem.Snapshot {
	return t.game.Snapshot()
}

func (t *Table) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
