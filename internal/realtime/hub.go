package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/internal/messages"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

type typingStore interface {
	SetTyping(ctx context.Context, conversationID, userID string, ttl time.Duration) error
	ClearTyping(ctx context.Context, conversationID, userID string) error
}

// Hub tracks live clients and the conversation rooms they joined, and fans
// server events out to room members. Broadcast is fire-and-forget; a client
// whose send buffer is full is disconnected rather than blocking the room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}

	logg      *logger.Logger
	typing    typingStore
	typingTTL time.Duration
}

// HubParams configure the hub.
type HubParams struct {
	Logger    *logger.Logger
	Typing    typingStore
	TypingTTL time.Duration
}

// NewHub builds an empty hub.
func NewHub(params HubParams) (*Hub, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	ttl := params.TypingTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Hub{
		rooms:     make(map[uuid.UUID]map[*Client]struct{}),
		logg:      params.Logger,
		typing:    params.Typing,
		typingTTL: ttl,
	}, nil
}

func (h *Hub) join(conversationID uuid.UUID, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conversationID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[conversationID] = room
	}
	room[client] = struct{}{}
}

func (h *Hub) leave(conversationID uuid.UUID, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conversationID, client)
}

func (h *Hub) leaveLocked(conversationID uuid.UUID, client *Client) {
	room, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(h.rooms, conversationID)
	}
}

// removeClient drops the client from every room it joined.
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conversationID, room := range h.rooms {
		if _, ok := room[client]; ok {
			h.leaveLocked(conversationID, client)
		}
	}
}

// BroadcastNewMessage implements messages.Broadcaster. Every room member
// receives the event, the sender included so its other devices converge;
// the sender's temp id rides along for exact optimistic reconciliation.
func (h *Hub) BroadcastNewMessage(conversationID uuid.UUID, broadcast messages.Broadcast) {
	if broadcast.Message == nil {
		return
	}
	payload := NewMessagePayload{
		ID:             broadcast.Message.ID,
		ConversationID: conversationID,
		Text:           broadcast.Message.Text,
		Sender:         broadcast.Message.Sender,
		SenderID:       broadcast.Message.SenderID,
		Status:         broadcast.Message.Status,
		Timestamp:      broadcast.Message.CreatedAt,
		TempID:         broadcast.TempID,
	}
	h.broadcast(conversationID, EventNewMessage, payload, nil, &payload.ID)
	h.broadcast(conversationID, EventConversationUpdated, ConversationUpdatedPayload{ConversationID: conversationID}, nil, nil)
}

// BroadcastTyping reports typing state to everyone in the room except the
// typist.
func (h *Hub) BroadcastTyping(ctx context.Context, conversationID, userID uuid.UUID, typing bool) {
	if h.typing != nil {
		var err error
		if typing {
			err = h.typing.SetTyping(ctx, conversationID.String(), userID.String(), h.typingTTL)
		} else {
			err = h.typing.ClearTyping(ctx, conversationID.String(), userID.String())
		}
		if err != nil {
			h.logg.Warn(h.logg.WithField(ctx, "error", err.Error()), "typing state write failed")
		}
	}

	payload := UserTypingPayload{
		ConversationID: conversationID,
		UserID:         userID,
		Typing:         typing,
	}
	h.broadcast(conversationID, EventUserTyping, payload, func(c *Client) bool {
		return c.userID == userID
	}, nil)
}

// broadcast delivers one frame to every non-skipped room member. When
// messageID is set, each client's bounded seen-set suppresses repeat
// deliveries of the same id.
func (h *Hub) broadcast(conversationID uuid.UUID, event string, payload any, skip func(*Client) bool, messageID *uuid.UUID) {
	frame, err := marshalEnvelope(event, payload)
	if err != nil {
		h.logg.Error(context.Background(), "marshal broadcast frame", err)
		return
	}

	h.mu.RLock()
	room := h.rooms[conversationID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		if skip != nil && skip(client) {
			continue
		}
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.deliver(conversationID, messageID, frame)
	}
}
