package factory

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/api"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/protocol"
	"github.com/mcoot/typerace-go/internal/testutil"
)

type IntegrationSuite struct {
	suite.Suite
	app    *TestApp
	server *httptest.Server
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	router := api.NewRouter(s.app.WSHandler, testutil.NopLogger())
	s.server = httptest.NewServer(router)
}

func (s *IntegrationSuite) TearDownTest() {
	s.server.Close()
}

func (s *IntegrationSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws/race"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return conn
}

func (s *IntegrationSuite) sendEvent(conn *websocket.Conn, t protocol.EventType, payload any) {
	ev, err := protocol.NewEvent(t, payload)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(ev))
}

func (s *IntegrationSuite) readEvent(conn *websocket.Conn) protocol.Event {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var ev protocol.Event
	s.Require().NoError(conn.ReadJSON(&ev))
	return ev
}

func (s *IntegrationSuite) expectEvent(conn *websocket.Conn, t protocol.EventType) protocol.Event {
	ev := s.readEvent(conn)
	s.Require().Equal(t, ev.Type, "unexpected event %s (data %s)", ev.Type, string(ev.Data))
	return ev
}

// createAndJoin runs two clients through room setup up to the start of the
// passage load
func (s *IntegrationSuite) createAndJoin() (p1, p2 *websocket.Conn) {
	s.app.MockRandom.QueueString("ABC123")

	p1 = s.dial()
	s.sendEvent(p1, protocol.EventCreateRoom, protocol.CreateRoomPayload{QuoteLength: model.QuoteLengthMedium})

	created := s.expectEvent(p1, protocol.EventRoomCreated)
	var ack protocol.RoomCreatedPayload
	s.Require().NoError(created.DecodeData(&ack))
	s.Equal(model.RoomCode("ABC123"), ack.RoomCode)
	s.expectEvent(p1, protocol.EventRoomState)

	p2 = s.dial()
	s.sendEvent(p2, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomCode: "ABC123"})
	s.expectEvent(p2, protocol.EventRoomCreated)
	s.expectEvent(p2, protocol.EventRoomState)
	s.expectEvent(p1, protocol.EventRoomState)

	return p1, p2
}

// runCountdown drains the passage and countdown sequence on both
// connections, leaving the room racing
func (s *IntegrationSuite) runCountdown(conns ...*websocket.Conn) {
	for _, conn := range conns {
		passage := s.expectEvent(conn, protocol.EventPassageText)
		var text string
		s.Require().NoError(passage.DecodeData(&text))
		s.NotEmpty(text)
	}

	for tick := 3; tick >= 1; tick-- {
		for _, conn := range conns {
			ev := s.expectEvent(conn, protocol.EventCountdownTick)
			var p protocol.CountdownTickPayload
			s.Require().NoError(ev.DecodeData(&p))
			s.Equal(tick, p.Count)
		}
		s.app.FakeClock.BlockUntil(1)
		s.app.FakeClock.Advance(time.Second)
	}

	for _, conn := range conns {
		s.expectEvent(conn, protocol.EventRaceStarted)
	}
}

func (s *IntegrationSuite) TestFullRaceFlow() {
	p1, p2 := s.createAndJoin()
	defer p1.Close()
	defer p2.Close()

	s.runCountdown(p1, p2)

	// Progress relays to the opponent only; each side's next inbound event
	// is the other's cursor, never its own echo
	s.sendEvent(p1, protocol.EventProgressUpdate, protocol.ProgressUpdatePayload{WordIndex: 2, CharIndex: 4})
	ev := s.expectEvent(p2, protocol.EventProgressUpdate)
	var progress protocol.ProgressPayload
	s.Require().NoError(ev.DecodeData(&progress))
	s.Equal(model.SlotFirst, progress.Player)
	s.Equal(2, progress.WordIndex)
	s.Equal(4, progress.CharIndex)

	s.sendEvent(p2, protocol.EventProgressUpdate, protocol.ProgressUpdatePayload{WordIndex: 1, CharIndex: 0})
	ev = s.expectEvent(p1, protocol.EventProgressUpdate)
	s.Require().NoError(ev.DecodeData(&progress))
	s.Equal(model.SlotSecond, progress.Player)

	// First result snaps the finisher's cursor for everyone, but discloses
	// nothing yet
	s.sendEvent(p1, protocol.EventSubmitResult, json.RawMessage(`{"wpm":92,"accuracy":0.97}`))
	for _, conn := range []*websocket.Conn{p1, p2} {
		ev = s.expectEvent(conn, protocol.EventProgressUpdate)
		s.Require().NoError(ev.DecodeData(&progress))
		s.Equal(model.SlotFirst, progress.Player)
	}

	// Second result discloses both
	s.sendEvent(p2, protocol.EventSubmitResult, json.RawMessage(`{"wpm":81,"accuracy":0.99}`))
	for _, conn := range []*websocket.Conn{p1, p2} {
		s.expectEvent(conn, protocol.EventProgressUpdate)
		ev = s.expectEvent(conn, protocol.EventPlayersState)
		var players model.PlayersState
		s.Require().NoError(ev.DecodeData(&players))
		s.JSONEq(`{"wpm":92,"accuracy":0.97}`, string(players.First.Result))
		s.JSONEq(`{"wpm":81,"accuracy":0.99}`, string(players.Second.Result))
	}
}

func (s *IntegrationSuite) TestRematchFlow() {
	p1, p2 := s.createAndJoin()
	defer p1.Close()
	defer p2.Close()

	s.runCountdown(p1, p2)

	s.sendEvent(p1, protocol.EventSubmitResult, json.RawMessage(`{"wpm":92}`))
	s.expectEvent(p1, protocol.EventProgressUpdate)
	s.expectEvent(p2, protocol.EventProgressUpdate)
	s.sendEvent(p2, protocol.EventSubmitResult, json.RawMessage(`{"wpm":81}`))
	for _, conn := range []*websocket.Conn{p1, p2} {
		s.expectEvent(conn, protocol.EventProgressUpdate)
		s.expectEvent(conn, protocol.EventPlayersState)
	}

	// Lone opt-in flags and notifies the opponent
	s.sendEvent(p1, protocol.EventRematchRequest, nil)
	s.expectEvent(p2, protocol.EventOpponentWantsRematch)

	// Mutual opt-in resets the room and starts the next race
	s.sendEvent(p2, protocol.EventRematchRequest, nil)
	for _, conn := range []*websocket.Conn{p1, p2} {
		ev := s.expectEvent(conn, protocol.EventRoomState)
		var snap model.Snapshot
		s.Require().NoError(ev.DecodeData(&snap))
		s.Empty(snap.Passage)
		s.Nil(snap.Players.First.Result)
	}

	s.runCountdown(p1, p2)
}

func (s *IntegrationSuite) TestJoinUnknownRoomFails() {
	conn := s.dial()
	defer conn.Close()

	s.sendEvent(conn, protocol.EventJoinRoom, protocol.JoinRoomPayload{RoomCode: "ZZZZZZ"})
	s.expectEvent(conn, protocol.EventJoinFailed)
}

func (s *IntegrationSuite) TestOpponentNotifiedOnDisconnect() {
	p1, p2 := s.createAndJoin()
	defer p2.Close()

	s.runCountdown(p1, p2)

	s.Require().NoError(p1.Close())
	s.expectEvent(p2, protocol.EventOpponentLeft)
}

func (s *IntegrationSuite) TestLeaveRoomNotifiesOpponent() {
	p1, p2 := s.createAndJoin()
	defer p1.Close()
	defer p2.Close()

	s.runCountdown(p1, p2)

	s.sendEvent(p1, protocol.EventLeaveRoom, nil)
	s.expectEvent(p2, protocol.EventOpponentLeft)
}
