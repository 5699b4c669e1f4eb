package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
	commandTimeout = 5 * time.Second
)

// Inbound command types.
const (
	msgJoinRoom     = "join_room"
	msgStartQuiz    = "start_quiz"
	msgSubmitAnswer = "submit_answer"
	msgPing         = "ping"
)

type WSHandler struct {
	coord    *app.Coordinator
	verifier *auth.Verifier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(coord *app.Coordinator, verifier *auth.Verifier, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		coord:    coord,
		verifier: verifier,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinRoomPayload struct {
	RoomCode    string `json:"room_code"`
	DisplayName string `json:"display_name"`
}

type startQuizPayload struct {
	SessionID string `json:"session_id"`
}

type submitAnswerPayload struct {
	QuestionID string `json:"question_id"`
	AnswerID   string `json:"answer_id"`
}

// ServeWS authenticates the caller, upgrades the connection and serves its
// commands until it drops. The connection joins a room with join_room.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.verifier.Identify(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		user: identity,
		h:    h,
		send: make(chan []byte, sendBuffer),
	}
	c.logger = h.logger.With("conn_id", c.id, "user_id", identity.UserID)

	go c.writePump()
	c.readPump()
}

// client is one websocket connection. It implements app.Conn.
type client struct {
	id     string
	conn   *websocket.Conn
	user   auth.Identity
	h      *WSHandler
	logger *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool

	// sessionID is read and written by readPump only.
	sessionID string
}

func (c *client) ID() string { return c.id }

// Send queues ev for the writer. A client that cannot keep up is cut off.
func (c *client) Send(ev app.Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error("marshal event", "event", ev.Type, "error", err)
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn("send buffer full, closing connection")
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) readPump() {
	defer func() {
		if c.sessionID != "" {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			c.h.coord.Disconnect(ctx, c.sessionID, c.user.UserID, c.id)
			cancel()
		}
		c.closeSend()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			var (
				syntaxErr *json.SyntaxError
				typeErr   *json.UnmarshalTypeError
			)
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				c.sendError(app.EventQuizError, "invalid_message", "message is not valid JSON")
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info("websocket closed", "error", err)
			}
			return
		}
		c.handle(msg)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("ws write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) handle(msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch msg.Type {
	case msgJoinRoom:
		var p joinRoomPayload
		if !c.decode(msg.Payload, &p, app.EventRoomJoinError) {
			return
		}
		c.join(ctx, p)
	case msgStartQuiz:
		var p startQuizPayload
		if len(msg.Payload) > 0 && !c.decode(msg.Payload, &p, app.EventQuizError) {
			return
		}
		sessionID := p.SessionID
		if sessionID == "" {
			sessionID = c.sessionID
		}
		if sessionID == "" {
			c.Send(app.ErrorEvent(app.EventQuizError, domain.ErrSessionNotFound))
			return
		}
		if err := c.h.coord.Start(ctx, sessionID, c.user.UserID); err != nil {
			c.Send(app.ErrorEvent(app.EventQuizError, err))
		}
	case msgSubmitAnswer:
		var p submitAnswerPayload
		if !c.decode(msg.Payload, &p, app.EventAnswerError) {
			return
		}
		if c.sessionID == "" {
			c.Send(app.ErrorEvent(app.EventAnswerError, domain.ErrNotParticipant))
			return
		}
		if err := c.h.coord.SubmitAnswer(ctx, c.sessionID, c.user.UserID, p.QuestionID, p.AnswerID); err != nil {
			c.Send(app.ErrorEvent(app.EventAnswerError, err))
		}
	case msgPing:
		c.Send(app.Event{Type: app.EventPong})
	default:
		c.sendError(app.EventQuizError, "unsupported_message", "unsupported message type "+msg.Type)
	}
}

func (c *client) join(ctx context.Context, p joinRoomPayload) {
	if c.sessionID != "" && !c.inRoom(ctx, p.RoomCode) {
		// One room per connection; switching rooms leaves the old one.
		c.h.coord.Disconnect(ctx, c.sessionID, c.user.UserID, c.id)
		c.sessionID = ""
	}
	name := p.DisplayName
	if name == "" {
		name = c.user.Name
	}
	if name == "" {
		name = c.user.UserID
	}
	res, err := c.h.coord.Join(ctx, app.JoinRequest{
		RoomCode:    p.RoomCode,
		UserID:      c.user.UserID,
		DisplayName: name,
		Conn:        c,
	})
	if err != nil {
		c.Send(app.ErrorEvent(app.EventRoomJoinError, err))
		return
	}
	c.sessionID = res.SessionID
	c.logger.Info("joined room", "session_id", res.SessionID, "is_creator", res.IsCreator)
}

// inRoom reports whether code belongs to the session this connection already
// joined. A repeat join is handled by the room as a rejoin on the same
// connection, so the participant never counts as gone.
func (c *client) inRoom(ctx context.Context, code string) bool {
	snap, err := c.h.coord.FindByCode(ctx, code)
	return err == nil && snap.ID == c.sessionID
}

func (c *client) decode(raw json.RawMessage, dst any, errType string) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		c.sendError(errType, "invalid_payload", err.Error())
		return false
	}
	return true
}

func (c *client) sendError(eventType, code, message string) {
	c.Send(app.Event{Type: eventType, Payload: app.ErrorPayload{Error: code, Message: message}})
}
