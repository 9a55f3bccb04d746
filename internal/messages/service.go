package messages

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/internal/conversations"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/pagination"
)

const maxMessageLength = 4000

// Broadcast is what the transport pushes to a conversation room after a
// message persists. TempID travels with the broadcast so the sender's client
// replaces its optimistic render exactly instead of heuristically.
type Broadcast struct {
	Message *models.Message
	TempID  string
}

// Broadcaster fans a stored message out to the live channel. The hub
// implements it; a no-op implementation serves processes without a websocket
// surface.
type Broadcaster interface {
	BroadcastNewMessage(conversationID uuid.UUID, broadcast Broadcast)
}

// NoopBroadcaster drops broadcasts. Used by worker processes.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastNewMessage(uuid.UUID, Broadcast) {}

// Service covers message append, listing and acknowledgment transitions.
// Both the websocket path and the REST fallback go through Send so the two
// paths share one server-side write.
type Service interface {
	Send(ctx context.Context, params SendParams) (*SendResult, error)
	List(ctx context.Context, userID, conversationID uuid.UUID, params pagination.Params) (*HistoryPage, error)
	AcknowledgeDelivered(ctx context.Context, userID, messageID uuid.UUID) error
	AcknowledgeRead(ctx context.Context, userID, messageID uuid.UUID) error
}

// HistoryPage is one page of conversation history in send order. NextCursor
// fetches the page of older messages; empty means the history is exhausted.
type HistoryPage struct {
	Messages   []models.Message `json:"messages"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// SendParams carries one message submission.
type SendParams struct {
	ConversationID uuid.UUID
	SenderUserID   uuid.UUID
	Text           string
	TempID         string
}

// SendResult pairs the durable message with the client's temp id.
type SendResult struct {
	Message *models.Message `json:"message"`
	TempID  string          `json:"temp_id,omitempty"`
}

// ServiceParams wire the message service dependencies.
type ServiceParams struct {
	Logger        *logger.Logger
	Repo          Repository
	Conversations conversations.Service
	Broadcaster   Broadcaster
}

type service struct {
	logg          *logger.Logger
	repo          Repository
	conversations conversations.Service
	broadcaster   Broadcaster
}

// NewService validates and wires the message service.
func NewService(params ServiceParams) (Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "messages repository required")
	}
	if params.Conversations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "conversations service required")
	}
	broadcaster := params.Broadcaster
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &service{
		logg:          params.Logger,
		repo:          params.Repo,
		conversations: params.Conversations,
		broadcaster:   broadcaster,
	}, nil
}

// Send persists the message with status sent and broadcasts it to the room,
// sender included, so every device converges on the authoritative record.
func (s *service) Send(ctx context.Context, params SendParams) (*SendResult, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message text required")
	}
	if len(text) > maxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message text too long")
	}

	conversation, err := s.conversations.Get(ctx, params.ConversationID)
	if err != nil {
		return nil, err
	}
	role, err := s.conversations.ParticipantRole(ctx, conversation, params.SenderUserID)
	if err != nil {
		return nil, err
	}

	sender, parseErr := enums.ParseSenderRole(role)
	if parseErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, parseErr, "resolve sender role")
	}

	message := &models.Message{
		ConversationID: params.ConversationID,
		SenderID:       params.SenderUserID,
		Sender:         sender,
		Text:           text,
		Status:         enums.MessageStatusSent,
	}
	if err := s.repo.Append(ctx, message); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMessageSendFailure, err, "persist message")
	}

	s.broadcaster.BroadcastNewMessage(params.ConversationID, Broadcast{
		Message: message,
		TempID:  params.TempID,
	})

	msgCtx := s.logg.WithConversationID(ctx, params.ConversationID.String())
	s.logg.Info(s.logg.WithField(msgCtx, "message_id", message.ID.String()), "message stored")

	return &SendResult{Message: message, TempID: params.TempID}, nil
}

// List returns one page of history, newest page first, each page in send
// order. The cursor walks backwards so clients can lazily load older
// messages.
func (s *service) List(ctx context.Context, userID, conversationID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.conversations.ParticipantRole(ctx, conversation, userID); err != nil {
		return nil, err
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)

	rows, err := s.repo.ListByConversation(ctx, conversationID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}

	page := &HistoryPage{}
	if len(rows) > limit {
		rows = rows[:limit]
		oldest := rows[len(rows)-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: oldest.CreatedAt,
			ID:        oldest.ID,
		})
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	page.Messages = rows
	return page, nil
}

// AcknowledgeDelivered records a recipient's delivery ack. Only the
// counterparty may ack, and the transition never regresses.
func (s *service) AcknowledgeDelivered(ctx context.Context, userID, messageID uuid.UUID) error {
	message, err := s.loadForAck(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if _, err := s.repo.MarkDelivered(ctx, message.ID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark delivered")
	}
	return nil
}

func (s *service) AcknowledgeRead(ctx context.Context, userID, messageID uuid.UUID) error {
	message, err := s.loadForAck(ctx, userID, messageID)
	if err != nil {
		return err
	}
	if _, err := s.repo.MarkRead(ctx, message.ID, time.Now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark read")
	}
	return nil
}

func (s *service) loadForAck(ctx context.Context, userID, messageID uuid.UUID) (*models.Message, error) {
	if userID == uuid.Nil || messageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and message ids required")
	}
	message, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
	}
	conversation, err := s.conversations.Get(ctx, message.ConversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.conversations.ParticipantRole(ctx, conversation, userID); err != nil {
		return nil, err
	}
	if message.SenderID == userID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot acknowledge own message")
	}
	return message, nil
}
