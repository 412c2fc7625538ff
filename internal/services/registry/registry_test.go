package registry

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

type RegistrySuite struct {
	suite.Suite
	storage  *memory.Storage
	random   *mocks.MockRandom
	clock    *clockwork.FakeClock
	registry *Registry
	ctx      context.Context
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.storage = memory.New()
	s.random = mocks.NewMockRandom()
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.registry = New(s.storage, s.random, s.clock, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *RegistrySuite) TestCreateRoom() {
	s.random.QueueString("ABC123")

	room, err := s.registry.CreateRoom(s.ctx, "conn-1", model.QuoteLengthMedium)
	s.Require().NoError(err)

	s.Equal(model.RoomCode("ABC123"), room.Code)
	s.Equal(model.PhaseAwaitingOpponent, room.Phase)
	s.Equal(model.ConnectionID("conn-1"), room.First.ConnectionID)
	s.Nil(room.Second)
	s.Empty(room.Passage)
	s.Equal(uint64(1), room.Generation)
}

func (s *RegistrySuite) TestCreateRoomIndexesConnection() {
	s.random.QueueString("ABC123")

	_, err := s.registry.CreateRoom(s.ctx, "conn-1", model.QuoteLengthShort)
	s.Require().NoError(err)

	code, err := s.registry.LookupByConnection(s.ctx, "conn-1")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("ABC123"), code)
}

func (s *RegistrySuite) TestCreateRoomRegeneratesOnCollision() {
	s.random.QueueString("ABC123", "ABC123", "XYZ789")

	first, err := s.registry.CreateRoom(s.ctx, "conn-1", model.QuoteLengthMedium)
	s.Require().NoError(err)
	s.Equal(model.RoomCode("ABC123"), first.Code)

	second, err := s.registry.CreateRoom(s.ctx, "conn-2", model.QuoteLengthMedium)
	s.Require().NoError(err)
	s.Equal(model.RoomCode("XYZ789"), second.Code)

	// The original room is untouched
	room, err := s.registry.Room(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.ConnectionID("conn-1"), room.First.ConnectionID)
}

func (s *RegistrySuite) TestRoomNotFound() {
	_, err := s.registry.Room(s.ctx, "ZZZZZZ")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *RegistrySuite) TestSaveStampsUpdatedAt() {
	s.random.QueueString("ABC123")
	room, _ := s.registry.CreateRoom(s.ctx, "conn-1", model.QuoteLengthMedium)

	s.clock.Advance(time.Minute)
	s.Require().NoError(s.registry.Save(s.ctx, room))

	saved, _ := s.registry.Room(s.ctx, "ABC123")
	s.Equal(s.clock.Now(), saved.UpdatedAt)
	s.True(saved.UpdatedAt.After(saved.CreatedAt))
}

func (s *RegistrySuite) TestReplacePreservesCodeAndAdvancesGeneration() {
	s.random.QueueString("ABC123")
	room, _ := s.registry.CreateRoom(s.ctx, "conn-1", model.QuoteLengthMedium)
	room.Second = &model.PlayerSlot{ConnectionID: "conn-2", WordIndex: 5}
	_ = s.registry.Save(s.ctx, room)

	reset := room.Reset(s.clock.Now())
	s.Require().NoError(s.registry.Replace(s.ctx, reset))

	replaced, err := s.registry.Room(s.ctx, "ABC123")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("ABC123"), replaced.Code)
	s.Equal(uint64(2), replaced.Generation)
	s.Equal(0, replaced.Second.WordIndex)
}

func (s *RegistrySuite) TestDeleteRemovesRoomAndIndexEntries() {
	s.random.QueueString("ABC123")
	room, _ := s.registry.CreateRoom(s.ctx, "conn-1", model.QuoteLengthMedium)
	room.Second = &model.PlayerSlot{ConnectionID: "conn-2"}
	_ = s.registry.Save(s.ctx, room)
	_ = s.registry.BindConnection(s.ctx, "conn-2", "ABC123")

	s.Require().NoError(s.registry.Delete(s.ctx, "ABC123"))

	_, err := s.registry.Room(s.ctx, "ABC123")
	s.ErrorIs(err, model.ErrRoomNotFound)
	_, err = s.registry.LookupByConnection(s.ctx, "conn-1")
	s.ErrorIs(err, model.ErrConnectionNotInRoom)
	_, err = s.registry.LookupByConnection(s.ctx, "conn-2")
	s.ErrorIs(err, model.ErrConnectionNotInRoom)
}

func TestGenerateCode(t *testing.T) {
	rnd := random.New()
	for i := 0; i < 100; i++ {
		code := GenerateCode(rnd, CodeLength)
		if len(code) != CodeLength {
			t.Fatalf("GenerateCode() length = %d, want %d", len(code), CodeLength)
		}
		for _, c := range string(code) {
			if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
				t.Fatalf("GenerateCode() produced character %q outside alphabet", c)
			}
		}
	}
}

func TestKeyedMutexExcludesSameCode(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.lock("ABC123")

	acquired := make(chan struct{})
	go func() {
		u := km.lock("ABC123")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestKeyedMutexIndependentCodes(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.lock("ABC123")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := km.lock("XYZ789")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different code blocked")
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	km := newKeyedMutex()

	unlock := km.lock("ABC123")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.entries) != 0 {
		t.Fatalf("entries = %d after release, want 0", len(km.entries))
	}
}
