package model

import (
	"encoding/json"
	"time"
)

// RoomCode is a human-typeable identifier for joining race rooms
type RoomCode string

// ConnectionID identifies one active transport connection. It is assigned
// by the transport layer on upgrade and only referenced here.
type ConnectionID string

// SlotID names one of the two fixed player positions in a room. The values
// match the wire protocol, which clients use to attribute progress updates.
type SlotID string

const (
	SlotFirst  SlotID = "player1"
	SlotSecond SlotID = "player2"
)

// Opponent returns the other slot position
func (s SlotID) Opponent() SlotID {
	if s == SlotFirst {
		return SlotSecond
	}
	return SlotFirst
}

// QuoteLength is the requested passage-length category
type QuoteLength string

const (
	QuoteLengthShort  QuoteLength = "short"
	QuoteLengthMedium QuoteLength = "medium"
	QuoteLengthLong   QuoteLength = "long"
)

// RoomPhase represents the current phase of a race room
type RoomPhase string

const (
	PhaseAwaitingOpponent  RoomPhase = "awaiting_opponent"  // One slot filled, waiting for a joiner
	PhaseLoadingPassage    RoomPhase = "loading_passage"    // Both slots filled, passage fetch in flight
	PhaseCountdown         RoomPhase = "countdown"          // Countdown ticks being broadcast
	PhaseRacing            RoomPhase = "racing"             // Race in progress
	PhasePartiallyFinished RoomPhase = "partially_finished" // One result recorded
	PhaseBothFinished      RoomPhase = "both_finished"      // Both results recorded and disclosed
	PhaseRematchPending    RoomPhase = "rematch_pending"    // One side has opted in to a rematch
	PhaseAbandoned         RoomPhase = "abandoned"          // One side has left; opponent may linger
)

// PlayerSlot is the per-participant mutable state within a room.
// JSON field names are part of the wire protocol.
type PlayerSlot struct {
	ConnectionID ConnectionID    `json:"id"`
	WordIndex    int             `json:"wordIndex"`
	CharIndex    int             `json:"charIndex"`
	Result       json.RawMessage `json:"result,omitempty"`
	WantsRematch bool            `json:"playAgain,omitempty"`
	Disconnected bool            `json:"disconnected,omitempty"`
}

// Room is one race session identified by a code, holding up to two player
// slots. The first slot is always populated at creation; the second only
// after a join.
type Room struct {
	Code        RoomCode    `json:"code"`
	Phase       RoomPhase   `json:"phase"`
	QuoteLength QuoteLength `json:"quoteLength"`
	Passage     string      `json:"testText,omitempty"`

	First  *PlayerSlot `json:"player1"`
	Second *PlayerSlot `json:"player2,omitempty"`

	// Generation distinguishes successive room instances reusing the same
	// code (rematch resets). Asynchronous continuations capture it and
	// become no-ops once it has advanced.
	Generation uint64 `json:"generation"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewRoom creates a room with the first slot bound to conn
func NewRoom(code RoomCode, conn ConnectionID, length QuoteLength, now time.Time) *Room {
	return &Room{
		Code:        code,
		Phase:       PhaseAwaitingOpponent,
		QuoteLength: length,
		First:       &PlayerSlot{ConnectionID: conn},
		Generation:  1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddPlayer fills the second slot, returning ErrRoomFull if it is taken
func (r *Room) AddPlayer(conn ConnectionID) error {
	if r.Second != nil {
		return ErrRoomFull
	}
	r.Second = &PlayerSlot{ConnectionID: conn}
	return nil
}

// Slot returns the slot at the given position, or nil if vacant
func (r *Room) Slot(id SlotID) *PlayerSlot {
	if id == SlotFirst {
		return r.First
	}
	return r.Second
}

// SlotFor resolves a connection to its slot position. The second return is
// false if the connection occupies neither slot.
func (r *Room) SlotFor(conn ConnectionID) (SlotID, bool) {
	if r.First != nil && r.First.ConnectionID == conn {
		return SlotFirst, true
	}
	if r.Second != nil && r.Second.ConnectionID == conn {
		return SlotSecond, true
	}
	return "", false
}

// Connections returns the connection IDs of all populated slots
func (r *Room) Connections() []ConnectionID {
	var conns []ConnectionID
	if r.First != nil {
		conns = append(conns, r.First.ConnectionID)
	}
	if r.Second != nil {
		conns = append(conns, r.Second.ConnectionID)
	}
	return conns
}

// BothFinished returns true if both slots carry a result
func (r *Room) BothFinished() bool {
	return r.First != nil && r.First.Result != nil &&
		r.Second != nil && r.Second.Result != nil
}

// Reset returns a fresh room under the same code for a rematch: both
// connections carried over, positions zeroed, results and flags cleared,
// passage emptied, generation advanced.
func (r *Room) Reset(now time.Time) *Room {
	next := &Room{
		Code:        r.Code,
		Phase:       PhaseLoadingPassage,
		QuoteLength: r.QuoteLength,
		First:       &PlayerSlot{ConnectionID: r.First.ConnectionID},
		Generation:  r.Generation + 1,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   now,
	}
	if r.Second != nil {
		next.Second = &PlayerSlot{ConnectionID: r.Second.ConnectionID}
	}
	return next
}

// PlayersState is the pair of slots as disclosed to clients
type PlayersState struct {
	First  *PlayerSlot `json:"player1"`
	Second *PlayerSlot `json:"player2,omitempty"`
}

// Players returns the room's slot pair for disclosure
func (r *Room) Players() PlayersState {
	return PlayersState{First: r.First, Second: r.Second}
}

// Snapshot is the full room state pushed to clients on create/join/reset
type Snapshot struct {
	Players     PlayersState `json:"players"`
	QuoteLength QuoteLength  `json:"quoteLength"`
	Passage     string       `json:"testText,omitempty"`
}

// Snapshot builds the client-facing view of the room
func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		Players:     r.Players(),
		QuoteLength: r.QuoteLength,
		Passage:     r.Passage,
	}
}
