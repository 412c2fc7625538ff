package protocol

import (
	"encoding/json"

	"github.com/mcoot/typerace-go/internal/model"
)

// EventType names one message on the bidirectional channel
type EventType string

// Client -> server events
const (
	EventCreateRoom     EventType = "create-room"
	EventJoinRoom       EventType = "join-room"
	EventProgressUpdate EventType = "progress-update" // also server -> client, relayed
	EventSubmitResult   EventType = "submit-result"
	EventRematchRequest EventType = "rematch-request"
	EventLeaveRoom      EventType = "leave-room"
)

// Server -> client events
const (
	EventRoomCreated          EventType = "room-created"
	EventJoinFailed           EventType = "join-failed"
	EventRoomState            EventType = "room-state"
	EventPassageText          EventType = "passage-text"
	EventPassageError         EventType = "passage-error"
	EventCountdownTick        EventType = "countdown-tick"
	EventRaceStarted          EventType = "race-started"
	EventPlayersState         EventType = "players-state"
	EventOpponentWantsRematch EventType = "opponent-wants-rematch"
	EventOpponentLeft         EventType = "opponent-left"
)

// Event is the wire envelope for every message in either direction
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an event, marshalling the payload. A nil payload produces
// an event with no data field.
func NewEvent(t EventType, payload any) (Event, error) {
	ev := Event{Type: t}
	if payload == nil {
		return ev, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	ev.Data = data
	return ev, nil
}

// DecodeData unmarshals the event payload into v
func (e Event) DecodeData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// CreateRoomPayload requests room creation with a passage-length category
type CreateRoomPayload struct {
	QuoteLength model.QuoteLength `json:"quoteLength"`
}

// JoinRoomPayload requests joining an existing room
type JoinRoomPayload struct {
	RoomCode model.RoomCode `json:"roomCode"`
}

// RoomCreatedPayload acknowledges room membership to the creator or joiner
type RoomCreatedPayload struct {
	RoomCode model.RoomCode `json:"roomCode"`
}

// ProgressPayload is a relayed cursor position, attributed to a slot
type ProgressPayload struct {
	Player    model.SlotID `json:"player"`
	WordIndex int          `json:"wordIndex"`
	CharIndex int          `json:"charIndex"`
}

// ProgressUpdatePayload is a sender's own cursor position
type ProgressUpdatePayload struct {
	WordIndex int `json:"wordIndex"`
	CharIndex int `json:"charIndex"`
}

// CountdownTickPayload carries the remaining tick count
type CountdownTickPayload struct {
	Count int `json:"count"`
}

// PassageErrorPayload reports a failed passage fetch
type PassageErrorPayload struct {
	Message string `json:"message"`
}
