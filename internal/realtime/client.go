package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/seangolding876/partsfinda-backend/internal/conversations"
	"github.com/seangolding876/partsfinda-backend/internal/messages"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

const defaultSeenCacheSize = 512

// Client is one authenticated websocket connection. A user may hold several
// clients at once (multi-device); each maintains its own room membership and
// its own bounded seen-set per conversation.
type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	logg          *logger.Logger
	cfg           config.RealtimeConfig
	messages      messages.Service
	conversations conversations.Service

	userID uuid.UUID
	send   chan []byte
	done   chan struct{}

	mu     sync.Mutex
	joined map[uuid.UUID]struct{}
	seen   map[uuid.UUID]*lru.Cache[uuid.UUID, struct{}]

	closeOnce sync.Once
}

func newClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, cfg config.RealtimeConfig, logg *logger.Logger, msgSvc messages.Service, convSvc conversations.Service) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		hub:           hub,
		conn:          conn,
		logg:          logg,
		cfg:           cfg,
		messages:      msgSvc,
		conversations: convSvc,
		userID:        userID,
		send:          make(chan []byte, buffer),
		done:          make(chan struct{}),
		joined:        make(map[uuid.UUID]struct{}),
		seen:          make(map[uuid.UUID]*lru.Cache[uuid.UUID, struct{}]),
	}
}

// deliver enqueues a frame, first consulting the conversation's seen-set
// when a message id accompanies the frame.
func (c *Client) deliver(conversationID uuid.UUID, messageID *uuid.UUID, frame []byte) {
	if messageID != nil && c.markSeen(conversationID, *messageID) {
		return
	}
	c.enqueue(frame)
}

// markSeen records the id and reports whether it was already present. The
// cache is bounded per conversation and dropped on leave, so a long session
// never grows without limit.
func (c *Client) markSeen(conversationID, messageID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	cache, ok := c.seen[conversationID]
	if !ok {
		size := c.cfg.SeenCacheSize
		if size <= 0 {
			size = defaultSeenCacheSize
		}
		cache, _ = lru.New[uuid.UUID, struct{}](size)
		c.seen[conversationID] = cache
	}
	if _, dup := cache.Get(messageID); dup {
		return true
	}
	cache.Add(messageID, struct{}{})
	return false
}

// enqueue is non-blocking; a client that cannot keep up is closed so a slow
// reader never stalls a room broadcast. The send channel is never closed, so
// a broadcast racing a disconnect drops the frame instead of panicking.
func (c *Client) enqueue(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- frame:
	case <-c.done:
	default:
		c.close()
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.hub.removeClient(c)
		close(c.done)
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.close()
		_ = c.conn.Close()
	}()

	if c.cfg.MaxMessageBytes > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageBytes)
	}
	pongTimeout := c.cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = 60 * time.Second
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "websocket read failed")
			}
			return
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Client) writePump(ctx context.Context) {
	pingInterval := c.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 50 * time.Second
	}
	writeTimeout := c.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, frame []byte) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		c.sendError(pkgerrors.CodeValidation, "malformed event frame")
		return
	}

	switch envelope.Event {
	case EventJoinConversation:
		c.handleJoin(ctx, envelope.Data)
	case EventLeaveConversation:
		c.handleLeave(envelope.Data)
	case EventSendMessage:
		c.handleSend(ctx, envelope.Data)
	case EventTypingStart:
		c.handleTyping(ctx, envelope.Data, true)
	case EventTypingStop:
		c.handleTyping(ctx, envelope.Data, false)
	case EventMessageDelivered:
		c.handleAck(ctx, envelope.Data, false)
	case EventMessageRead:
		c.handleAck(ctx, envelope.Data, true)
	default:
		c.sendError(pkgerrors.CodeValidation, "unknown event")
	}
}

func (c *Client) handleJoin(ctx context.Context, data json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == uuid.Nil {
		c.sendError(pkgerrors.CodeValidation, "conversationId required")
		return
	}

	conversation, err := c.conversations.Get(ctx, payload.ConversationID)
	if err != nil {
		c.sendTypedError(err)
		return
	}
	if _, err := c.conversations.ParticipantRole(ctx, conversation, c.userID); err != nil {
		c.sendTypedError(err)
		return
	}

	c.mu.Lock()
	c.joined[payload.ConversationID] = struct{}{}
	c.mu.Unlock()
	c.hub.join(payload.ConversationID, c)
}

func (c *Client) handleLeave(data json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == uuid.Nil {
		c.sendError(pkgerrors.CodeValidation, "conversationId required")
		return
	}

	c.mu.Lock()
	delete(c.joined, payload.ConversationID)
	delete(c.seen, payload.ConversationID)
	c.mu.Unlock()
	c.hub.leave(payload.ConversationID, c)
}

func (c *Client) handleSend(ctx context.Context, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == uuid.Nil {
		c.sendError(pkgerrors.CodeValidation, "conversationId and messageText required")
		return
	}

	_, err := c.messages.Send(ctx, messages.SendParams{
		ConversationID: payload.ConversationID,
		SenderUserID:   c.userID,
		Text:           payload.MessageText,
		TempID:         payload.TempID,
	})
	if err != nil {
		c.sendTypedError(err)
	}
}

func (c *Client) handleTyping(ctx context.Context, data json.RawMessage, typing bool) {
	var payload RoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ConversationID == uuid.Nil {
		c.sendError(pkgerrors.CodeValidation, "conversationId required")
		return
	}
	if !c.inRoom(payload.ConversationID) {
		c.sendError(pkgerrors.CodeForbidden, "join the conversation first")
		return
	}
	c.hub.BroadcastTyping(ctx, payload.ConversationID, c.userID, typing)
}

func (c *Client) handleAck(ctx context.Context, data json.RawMessage, read bool) {
	var payload AckPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.MessageID == uuid.Nil {
		c.sendError(pkgerrors.CodeValidation, "messageId required")
		return
	}

	var err error
	if read {
		err = c.messages.AcknowledgeRead(ctx, c.userID, payload.MessageID)
	} else {
		err = c.messages.AcknowledgeDelivered(ctx, c.userID, payload.MessageID)
	}
	if err != nil {
		c.sendTypedError(err)
	}
}

func (c *Client) inRoom(conversationID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.joined[conversationID]
	return ok
}

func (c *Client) sendError(code pkgerrors.Code, message string) {
	frame, err := marshalEnvelope(EventError, ErrorPayload{Code: string(code), Message: message})
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *Client) sendTypedError(err error) {
	if typed := pkgerrors.As(err); typed != nil {
		c.sendError(typed.Code(), typed.Message())
		return
	}
	c.sendError(pkgerrors.CodeInternal, "internal error")
}
