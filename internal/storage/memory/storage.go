package memory

import (
	"context"
	"sync"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	rooms       map[model.RoomCode]*model.Room
	connections map[model.ConnectionID]model.RoomCode
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		rooms:       make(map[model.RoomCode]*model.Room),
		connections: make(map[model.ConnectionID]model.RoomCode),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.Code] = room
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return room, nil
}

func (s *Storage) DeleteRoom(ctx context.Context, code model.RoomCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *Storage) RoomExists(ctx context.Context, code model.RoomCode) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[code]
	return ok, nil
}

// Connection index operations

func (s *Storage) BindConnection(ctx context.Context, conn model.ConnectionID, code model.RoomCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn] = code
	return nil
}

func (s *Storage) GetConnectionRoom(ctx context.Context, conn model.ConnectionID) (model.RoomCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	code, ok := s.connections[conn]
	if !ok {
		return "", model.ErrConnectionNotInRoom
	}
	return code, nil
}

func (s *Storage) UnbindConnection(ctx context.Context, conn model.ConnectionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, conn)
	return nil
}
