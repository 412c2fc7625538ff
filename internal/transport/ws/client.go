package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/protocol"
)

// Dispatcher handles decoded inbound events. The race coordinator
// implements it; the transport layer never interprets payloads beyond the
// envelope.
type Dispatcher interface {
	HandleCreate(ctx context.Context, conn model.ConnectionID, p protocol.CreateRoomPayload) error
	HandleJoin(ctx context.Context, conn model.ConnectionID, p protocol.JoinRoomPayload) error
	HandleProgress(ctx context.Context, conn model.ConnectionID, p protocol.ProgressUpdatePayload) error
	HandleResult(ctx context.Context, conn model.ConnectionID, result json.RawMessage) error
	HandleRematch(ctx context.Context, conn model.ConnectionID) error
	HandleDeparture(ctx context.Context, conn model.ConnectionID) error
}

// Client is one live websocket connection being pumped
type Client struct {
	ID model.ConnectionID

	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	dispatcher Dispatcher
	config     Config
	logger     *slog.Logger
}

func newClient(id model.ConnectionID, hub *Hub, conn *websocket.Conn, dispatcher Dispatcher, config Config, logger *slog.Logger) *Client {
	return &Client{
		ID:         id,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, config.SendBufferSize),
		dispatcher: dispatcher,
		config:     config,
		logger:     logger.With(slog.String("connection_id", string(id))),
	}
}

// readPump reads inbound events until the connection drops, dispatching
// each one. On exit the departure handler runs so the room reflects the
// disconnect whether or not the client sent leave-room first.
func (c *Client) readPump() {
	defer func() {
		if err := c.dispatcher.HandleDeparture(context.Background(), c.ID); err != nil {
			c.logger.Error("departure handling failed", slog.String("error", err.Error()))
		}
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var event protocol.Event
		if err := json.Unmarshal(message, &event); err != nil {
			c.logger.Warn("dropping malformed event", slog.String("error", err.Error()))
			continue
		}
		c.dispatch(event)
	}
}

// dispatch decodes the payload for the event type and invokes the handler.
// Malformed payloads and unknown types are dropped with a log line rather
// than killing the connection.
func (c *Client) dispatch(event protocol.Event) {
	ctx := context.Background()

	var err error
	switch event.Type {
	case protocol.EventCreateRoom:
		var p protocol.CreateRoomPayload
		if err = event.DecodeData(&p); err == nil {
			err = c.dispatcher.HandleCreate(ctx, c.ID, p)
		}
	case protocol.EventJoinRoom:
		var p protocol.JoinRoomPayload
		if err = event.DecodeData(&p); err == nil {
			err = c.dispatcher.HandleJoin(ctx, c.ID, p)
		}
	case protocol.EventProgressUpdate:
		var p protocol.ProgressUpdatePayload
		if err = event.DecodeData(&p); err == nil {
			err = c.dispatcher.HandleProgress(ctx, c.ID, p)
		}
	case protocol.EventSubmitResult:
		err = c.dispatcher.HandleResult(ctx, c.ID, event.Data)
	case protocol.EventRematchRequest:
		err = c.dispatcher.HandleRematch(ctx, c.ID)
	case protocol.EventLeaveRoom:
		err = c.dispatcher.HandleDeparture(ctx, c.ID)
	default:
		c.logger.Warn("dropping event of unknown type", slog.String("type", string(event.Type)))
		return
	}

	if err != nil {
		c.logger.Error("event handling failed",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()),
		)
	}
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write failed", slog.String("error", err.Error()))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
