package race

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/protocol"
	"github.com/mcoot/typerace-go/internal/services/quote"
	"github.com/mcoot/typerace-go/internal/services/registry"
)

// Relay delivers events to connections. The transport layer implements it;
// the coordinator never touches sockets directly.
type Relay interface {
	// Join subscribes a connection to a room's broadcasts
	Join(code model.RoomCode, conn model.ConnectionID)
	// Leave unsubscribes a connection from a room's broadcasts
	Leave(code model.RoomCode, conn model.ConnectionID)
	// ToRoom delivers an event to every connection in a room
	ToRoom(code model.RoomCode, event protocol.Event)
	// ToRoomExcept delivers an event to every connection in a room except one
	ToRoomExcept(code model.RoomCode, sender model.ConnectionID, event protocol.Event)
	// ToConnection delivers an event to a single connection
	ToConnection(conn model.ConnectionID, event protocol.Event)
}

// Config holds countdown tuning
type Config struct {
	// CountdownTicks is the number of countdown-tick events before race start
	CountdownTicks int
	// CountdownInterval is the delay between consecutive ticks
	CountdownInterval time.Duration
}

// DefaultConfig returns the standard three-second countdown
func DefaultConfig() Config {
	return Config{
		CountdownTicks:    3,
		CountdownInterval: time.Second,
	}
}

// Coordinator drives the room lifecycle: create, join, passage load,
// countdown, progress relay, result disclosure, rematch and departure.
// All state lives in the registry; every handler locks the room for its
// duration so broadcast order matches mutation order.
type Coordinator struct {
	registry *registry.Registry
	relay    Relay
	quotes   quote.Provider
	fallback quote.Provider
	clock    clockwork.Clock
	cfg      Config
	logger   *slog.Logger
}

// New creates a coordinator. fallback is consulted when quotes fails; it is
// expected to always succeed.
func New(
	reg *registry.Registry,
	relay Relay,
	quotes quote.Provider,
	fallback quote.Provider,
	clock clockwork.Clock,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		registry: reg,
		relay:    relay,
		quotes:   quotes,
		fallback: fallback,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "race")),
	}
}

// HandleCreate creates a room for conn and acknowledges it
func (c *Coordinator) HandleCreate(ctx context.Context, conn model.ConnectionID, p protocol.CreateRoomPayload) error {
	length := p.QuoteLength
	switch length {
	case model.QuoteLengthShort, model.QuoteLengthMedium, model.QuoteLengthLong:
	default:
		length = model.QuoteLengthMedium
	}

	room, err := c.registry.CreateRoom(ctx, conn, length)
	if err != nil {
		return err
	}

	c.relay.Join(room.Code, conn)
	c.send(conn, protocol.EventRoomCreated, protocol.RoomCreatedPayload{RoomCode: room.Code})
	c.broadcast(room.Code, protocol.EventRoomState, room.Snapshot())
	return nil
}

// HandleJoin fills the second slot of an existing room and kicks off the
// passage load. An unknown code or a full room yields join-failed to the
// requester only, with no room mutation.
func (c *Coordinator) HandleJoin(ctx context.Context, conn model.ConnectionID, p protocol.JoinRoomPayload) error {
	unlock := c.registry.LockRoom(p.RoomCode)
	defer unlock()

	room, err := c.registry.Room(ctx, p.RoomCode)
	if err != nil {
		if errors.Is(err, model.ErrRoomNotFound) {
			c.send(conn, protocol.EventJoinFailed, nil)
			return nil
		}
		return err
	}
	if err := room.AddPlayer(conn); err != nil {
		c.send(conn, protocol.EventJoinFailed, nil)
		return nil
	}

	room.Phase = model.PhaseLoadingPassage
	if err := c.registry.Save(ctx, room); err != nil {
		return err
	}
	if err := c.registry.BindConnection(ctx, conn, room.Code); err != nil {
		return err
	}

	c.relay.Join(room.Code, conn)
	c.send(conn, protocol.EventRoomCreated, protocol.RoomCreatedPayload{RoomCode: room.Code})
	c.broadcast(room.Code, protocol.EventRoomState, room.Snapshot())

	c.logger.Info("player joined room",
		slog.String("code", string(room.Code)),
		slog.String("connection_id", string(conn)),
	)

	go c.loadPassage(room.Code, room.Generation, room.QuoteLength)
	return nil
}

// loadPassage fetches the passage outside the room lock, then commits it and
// starts the countdown. A stale generation or a vanished room aborts
// silently; a fetch failure is reported and the fallback provider used.
func (c *Coordinator) loadPassage(code model.RoomCode, gen uint64, length model.QuoteLength) {
	ctx := context.Background()

	passage, fetchErr := c.quotes.Fetch(ctx, length)

	unlock := c.registry.LockRoom(code)
	defer unlock()

	room, err := c.registry.Room(ctx, code)
	if err != nil || room.Generation != gen {
		return
	}

	if fetchErr != nil {
		c.logger.Warn("passage fetch failed, using fallback",
			slog.String("code", string(code)),
			slog.String("error", fetchErr.Error()),
		)
		c.broadcast(code, protocol.EventPassageError, protocol.PassageErrorPayload{
			Message: "failed to fetch a passage, using a built-in one",
		})
		passage, err = c.fallback.Fetch(ctx, length)
		if err != nil {
			c.logger.Error("fallback passage fetch failed", slog.String("error", err.Error()))
			return
		}
	}

	room.Passage = passage
	room.Phase = model.PhaseCountdown
	if err := c.registry.Save(ctx, room); err != nil {
		c.logger.Error("saving passage failed", slog.String("error", err.Error()))
		return
	}

	c.broadcast(code, protocol.EventPassageText, room.Passage)

	go c.runCountdown(code, gen)
}

// runCountdown broadcasts the tick sequence and flips the room to racing.
// Each tick revalidates the room and generation under the lock, so a
// rematch reset or room deletion mid-countdown cancels the remainder.
func (c *Coordinator) runCountdown(code model.RoomCode, gen uint64) {
	ctx := context.Background()

	for i := c.cfg.CountdownTicks; i >= 1; i-- {
		if !c.tickIfCurrent(ctx, code, gen, i) {
			return
		}
		timer := c.clock.NewTimer(c.cfg.CountdownInterval)
		<-timer.Chan()
	}

	unlock := c.registry.LockRoom(code)
	defer unlock()

	room, err := c.registry.Room(ctx, code)
	if err != nil || room.Generation != gen {
		return
	}

	room.Phase = model.PhaseRacing
	if err := c.registry.Save(ctx, room); err != nil {
		c.logger.Error("saving race start failed", slog.String("error", err.Error()))
		return
	}
	c.broadcast(code, protocol.EventRaceStarted, nil)
}

// tickIfCurrent broadcasts one countdown tick if the room still exists at
// the expected generation
func (c *Coordinator) tickIfCurrent(ctx context.Context, code model.RoomCode, gen uint64, count int) bool {
	unlock := c.registry.LockRoom(code)
	defer unlock()

	room, err := c.registry.Room(ctx, code)
	if err != nil || room.Generation != gen {
		return false
	}
	c.broadcast(code, protocol.EventCountdownTick, protocol.CountdownTickPayload{Count: count})
	return true
}

// HandleProgress records a cursor position and relays it to the opponent.
// The sender never receives its own update back. Progress from a connection
// not in any room is dropped.
func (c *Coordinator) HandleProgress(ctx context.Context, conn model.ConnectionID, p protocol.ProgressUpdatePayload) error {
	code, err := c.registry.LookupByConnection(ctx, conn)
	if err != nil {
		return nil
	}

	unlock := c.registry.LockRoom(code)
	defer unlock()

	room, err := c.registry.Room(ctx, code)
	if err != nil {
		return nil
	}
	slotID, ok := room.SlotFor(conn)
	if !ok {
		return nil
	}

	slot := room.Slot(slotID)
	slot.WordIndex = p.WordIndex
	slot.CharIndex = p.CharIndex
	if err := c.registry.Save(ctx, room); err != nil {
		return err
	}

	c.broadcastExcept(code, conn, protocol.EventProgressUpdate, protocol.ProgressPayload{
		Player:    slotID,
		WordIndex: p.WordIndex,
		CharIndex: p.CharIndex,
	})
	return nil
}

// HandleResult records a finisher's result. The finisher's cursor is
// broadcast at the end of the passage so the opponent's view completes, and
// once both results are in the full players state is disclosed to the room.
func (c *Coordinator) HandleResult(ctx context.Context, conn model.ConnectionID, result json.RawMessage) error {
	code, err := c.registry.LookupByConnection(ctx, conn)
	if err != nil {
		c.logger.Warn("result from connection not in a room", slog.String("connection_id", string(conn)))
		return nil
	}

	unlock := c.registry.LockRoom(code)
	defer unlock()

	room, err := c.registry.Room(ctx, code)
	if err != nil {
		return nil
	}
	slotID, ok := room.SlotFor(conn)
	if !ok {
		return nil
	}

	slot := room.Slot(slotID)
	slot.Result = result

	// Snap the finisher's cursor to the end of the passage for the opponent
	if words := strings.Split(room.Passage, " "); room.Passage != "" && len(words) > 0 {
		last := words[len(words)-1]
		slot.WordIndex = len(words) - 1
		slot.CharIndex = len(last)
		c.broadcast(code, protocol.EventProgressUpdate, protocol.ProgressPayload{
			Player:    slotID,
			WordIndex: slot.WordIndex,
			CharIndex: slot.CharIndex,
		})
	}

	if room.BothFinished() {
		room.Phase = model.PhaseBothFinished
		c.broadcast(code, protocol.EventPlayersState, room.Players())
	} else {
		room.Phase = model.PhasePartiallyFinished
	}

	return c.registry.Save(ctx, room)
}

// HandleRematch records a rematch opt-in. The first opt-in flags the slot
// and notifies the opponent; the second resets the room in place and starts
// a fresh passage load under the next generation.
func (c *Coordinator) HandleRematch(ctx context.Context, conn model.ConnectionID) error {
	code, err := c.registry.LookupByConnection(ctx, conn)
	if err != nil {
		c.logger.Warn("rematch request from connection not in a room", slog.String("connection_id", string(conn)))
		return nil
	}

	unlock := c.registry.LockRoom(code)
	defer unlock()

	room, err := c.registry.Room(ctx, code)
	if err != nil {
		return nil
	}
	slotID, ok := room.SlotFor(conn)
	if !ok {
		return nil
	}

	opp := room.Slot(slotID.Opponent())

	if opp != nil && opp.WantsRematch {
		next := room.Reset(c.clock.Now())
		if err := c.registry.Replace(ctx, next); err != nil {
			return err
		}
		c.broadcast(code, protocol.EventRoomState, next.Snapshot())
		go c.loadPassage(code, next.Generation, next.QuoteLength)
		return nil
	}

	room.Slot(slotID).WantsRematch = true
	room.Phase = model.PhaseRematchPending
	if err := c.registry.Save(ctx, room); err != nil {
		return err
	}
	if opp != nil && !opp.Disconnected {
		c.send(opp.ConnectionID, protocol.EventOpponentWantsRematch, nil)
	}
	return nil
}

// HandleDeparture removes a connection from its room, whether it left
// deliberately or dropped. With no live opponent the room is torn down;
// otherwise the slot is marked disconnected and the opponent notified.
func (c *Coordinator) HandleDeparture(ctx context.Context, conn model.ConnectionID) error {
	code, err := c.registry.LookupByConnection(ctx, conn)
	if err != nil {
		return nil
	}

	unlock := c.registry.LockRoom(code)
	defer unlock()

	if err := c.registry.UnbindConnection(ctx, conn); err != nil {
		return err
	}

	room, err := c.registry.Room(ctx, code)
	if err != nil {
		return nil
	}
	slotID, ok := room.SlotFor(conn)
	if !ok {
		return nil
	}

	opp := room.Slot(slotID.Opponent())
	if opp == nil || opp.Disconnected {
		if err := c.registry.Delete(ctx, code); err != nil {
			return err
		}
		c.relay.Leave(code, conn)
		return nil
	}

	room.Slot(slotID).Disconnected = true
	room.Phase = model.PhaseAbandoned
	if err := c.registry.Save(ctx, room); err != nil {
		return err
	}
	c.relay.Leave(code, conn)
	c.send(opp.ConnectionID, protocol.EventOpponentLeft, nil)

	c.logger.Info("player left room",
		slog.String("code", string(code)),
		slog.String("connection_id", string(conn)),
	)
	return nil
}

func (c *Coordinator) send(conn model.ConnectionID, t protocol.EventType, payload any) {
	ev, err := protocol.NewEvent(t, payload)
	if err != nil {
		c.logger.Error("encoding event failed", slog.String("type", string(t)), slog.String("error", err.Error()))
		return
	}
	c.relay.ToConnection(conn, ev)
}

func (c *Coordinator) broadcast(code model.RoomCode, t protocol.EventType, payload any) {
	ev, err := protocol.NewEvent(t, payload)
	if err != nil {
		c.logger.Error("encoding event failed", slog.String("type", string(t)), slog.String("error", err.Error()))
		return
	}
	c.relay.ToRoom(code, ev)
}

func (c *Coordinator) broadcastExcept(code model.RoomCode, sender model.ConnectionID, t protocol.EventType, payload any) {
	ev, err := protocol.NewEvent(t, payload)
	if err != nil {
		c.logger.Error("encoding event failed", slog.String("type", string(t)), slog.String("error", err.Error()))
		return
	}
	c.relay.ToRoomExcept(code, sender, ev)
}
