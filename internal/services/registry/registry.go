package registry

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

const (
	// CodeLength is the length of generated room codes
	CodeLength = 6
	// CodeAlphabet is the characters used in room codes
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateCode produces a room code of the given length, drawing each
// character uniformly from CodeAlphabet.
func GenerateCode(rnd random.Random, length int) model.RoomCode {
	return model.RoomCode(rnd.String(length, CodeAlphabet))
}

// Registry owns all room state and the connection -> room index. Callers
// mutating a room must hold its lock (LockRoom) for the whole handler so
// reads and writes within one inbound event are atomic; rooms never
// interact, so cross-room operations need no coordination.
type Registry struct {
	storage storage.Storage
	random  random.Random
	clock   clockwork.Clock
	logger  *slog.Logger
	locks   *keyedMutex
}

// New creates a new Registry
func New(storage storage.Storage, rnd random.Random, clock clockwork.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		storage: storage,
		random:  rnd,
		clock:   clock,
		logger:  logger.With(slog.String("component", "registry")),
		locks:   newKeyedMutex(),
	}
}

// LockRoom acquires exclusive access to the room under code and returns
// the release function.
func (r *Registry) LockRoom(code model.RoomCode) func() {
	return r.locks.lock(code)
}

// CreateRoom generates a fresh code, creates a room with the first slot
// bound to conn and indexes the connection. Codes colliding with a live
// room are regenerated.
func (r *Registry) CreateRoom(ctx context.Context, conn model.ConnectionID, length model.QuoteLength) (*model.Room, error) {
	var code model.RoomCode
	for {
		code = GenerateCode(r.random, CodeLength)
		exists, err := r.storage.RoomExists(ctx, code)
		if err != nil {
			return nil, err
		}
		if !exists {
			break
		}
		r.logger.Warn("room code collision, regenerating", slog.String("code", string(code)))
	}

	unlock := r.LockRoom(code)
	defer unlock()

	room := model.NewRoom(code, conn, length, r.clock.Now())

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	if err := r.storage.BindConnection(ctx, conn, code); err != nil {
		return nil, err
	}

	r.logger.Info("room created",
		slog.String("code", string(code)),
		slog.String("connection_id", string(conn)),
		slog.String("quote_length", string(length)),
	)

	return room, nil
}

// Room retrieves a room by code. Callers intending to mutate must hold
// the room lock.
func (r *Registry) Room(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return r.storage.GetRoom(ctx, code)
}

// LookupByConnection resolves a connection to its room code
func (r *Registry) LookupByConnection(ctx context.Context, conn model.ConnectionID) (model.RoomCode, error) {
	return r.storage.GetConnectionRoom(ctx, conn)
}

// Save persists a mutated room, stamping UpdatedAt
func (r *Registry) Save(ctx context.Context, room *model.Room) error {
	room.UpdatedAt = r.clock.Now()
	return r.storage.SaveRoom(ctx, room)
}

// Replace swaps a room's contents in place under its existing code,
// used for rematch resets. The caller must hold the room lock.
func (r *Registry) Replace(ctx context.Context, room *model.Room) error {
	room.UpdatedAt = r.clock.Now()
	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return err
	}

	r.logger.Info("room replaced",
		slog.String("code", string(room.Code)),
		slog.Uint64("generation", room.Generation),
	)
	return nil
}

// Delete removes a room and the index entries of every connection still
// bound to it. The caller must hold the room lock.
func (r *Registry) Delete(ctx context.Context, code model.RoomCode) error {
	room, err := r.storage.GetRoom(ctx, code)
	if err == nil {
		for _, conn := range room.Connections() {
			if err := r.storage.UnbindConnection(ctx, conn); err != nil {
				return err
			}
		}
	}

	if err := r.storage.DeleteRoom(ctx, code); err != nil {
		return err
	}

	r.logger.Info("room deleted", slog.String("code", string(code)))
	return nil
}

// BindConnection indexes a connection under a room code
func (r *Registry) BindConnection(ctx context.Context, conn model.ConnectionID, code model.RoomCode) error {
	return r.storage.BindConnection(ctx, conn, code)
}

// UnbindConnection removes a connection's index entry
func (r *Registry) UnbindConnection(ctx context.Context, conn model.ConnectionID) error {
	return r.storage.UnbindConnection(ctx, conn)
}
