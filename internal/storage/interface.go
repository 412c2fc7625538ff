package storage

import (
	"context"

	"github.com/mcoot/typerace-go/internal/model"
)

// Storage defines the interface for room state and the connection index.
// It is deliberately dumb: all race semantics live in the registry and
// coordinator, which are the only callers.
type Storage interface {
	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	DeleteRoom(ctx context.Context, code model.RoomCode) error
	RoomExists(ctx context.Context, code model.RoomCode) (bool, error)

	// Connection index operations (connection -> room code)
	BindConnection(ctx context.Context, conn model.ConnectionID, code model.RoomCode) error
	GetConnectionRoom(ctx context.Context, conn model.ConnectionID) (model.RoomCode, error)
	UnbindConnection(ctx context.Context, conn model.ConnectionID) error
}
