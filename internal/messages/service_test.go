package messages

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
	"github.com/seangolding876/partsfinda-backend/pkg/pagination"
)

type fakeMessageRepo struct {
	appended   []*models.Message
	byID       map[uuid.UUID]*models.Message
	listed     []models.Message
	listCursor *pagination.Cursor
	delivered  []uuid.UUID
	read       []uuid.UUID
}

func (f *fakeMessageRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeMessageRepo) Append(ctx context.Context, message *models.Message) error {
	message.ID = uuid.New()
	message.CreatedAt = time.Now().UTC()
	f.appended = append(f.appended, message)
	return nil
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	if message, ok := f.byID[id]; ok {
		return message, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID uuid.UUID, before *pagination.Cursor, limit int) ([]models.Message, error) {
	f.listCursor = before
	if limit > 0 && limit < len(f.listed) {
		return f.listed[:limit], nil
	}
	return f.listed, nil
}

func (f *fakeMessageRepo) MarkDelivered(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.delivered = append(f.delivered, id)
	return true, nil
}

func (f *fakeMessageRepo) MarkRead(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.read = append(f.read, id)
	return true, nil
}

// fakeConversationAccess resolves buyer and seller by user id and rejects
// everyone else, mirroring the membership check of the real service.
type fakeConversationAccess struct {
	conversation *models.Conversation
	buyerUserID  uuid.UUID
	sellerUserID uuid.UUID
}

func (f *fakeConversationAccess) Open(ctx context.Context, tx *gorm.DB, requestID, buyerID, sellerID uuid.UUID) (*models.Conversation, error) {
	return f.conversation, nil
}

func (f *fakeConversationAccess) Get(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	if f.conversation == nil || f.conversation.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "conversation not found")
	}
	return f.conversation, nil
}

func (f *fakeConversationAccess) ParticipantRole(ctx context.Context, conversation *models.Conversation, userID uuid.UUID) (string, error) {
	switch userID {
	case f.buyerUserID:
		return "buyer", nil
	case f.sellerUserID:
		return "seller", nil
	}
	return "", pkgerrors.New(pkgerrors.CodeForbidden, "not a participant in this conversation")
}

type recordingBroadcaster struct {
	conversationID uuid.UUID
	broadcasts     []Broadcast
}

func (r *recordingBroadcaster) BroadcastNewMessage(conversationID uuid.UUID, broadcast Broadcast) {
	r.conversationID = conversationID
	r.broadcasts = append(r.broadcasts, broadcast)
}

type messageFixture struct {
	svc         Service
	repo        *fakeMessageRepo
	convs       *fakeConversationAccess
	broadcaster *recordingBroadcaster

	conversationID uuid.UUID
	buyerUserID    uuid.UUID
	sellerUserID   uuid.UUID
}

func newMessageFixture(t *testing.T) *messageFixture {
	t.Helper()
	f := &messageFixture{
		conversationID: uuid.New(),
		buyerUserID:    uuid.New(),
		sellerUserID:   uuid.New(),
	}
	f.repo = &fakeMessageRepo{byID: map[uuid.UUID]*models.Message{}}
	f.convs = &fakeConversationAccess{
		conversation: &models.Conversation{
			ID:      f.conversationID,
			BuyerID: f.buyerUserID,
		},
		buyerUserID:  f.buyerUserID,
		sellerUserID: f.sellerUserID,
	}
	f.broadcaster = &recordingBroadcaster{}

	svc, err := NewService(ServiceParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Repo:          f.repo,
		Conversations: f.convs,
		Broadcaster:   f.broadcaster,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *messageFixture) storedMessage(senderID uuid.UUID) *models.Message {
	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: f.conversationID,
		SenderID:       senderID,
		Status:         enums.MessageStatusSent,
	}
	f.repo.byID[message.ID] = message
	return message
}

func wantMessageCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}

func TestSend_persistsAndBroadcasts(t *testing.T) {
	f := newMessageFixture(t)

	result, err := f.svc.Send(context.Background(), SendParams{
		ConversationID: f.conversationID,
		SenderUserID:   f.buyerUserID,
		Text:           "  Is the part still available?  ",
		TempID:         "tmp-17",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Message.Text != "Is the part still available?" {
		t.Fatalf("text = %q, want trimmed", result.Message.Text)
	}
	if result.Message.Status != enums.MessageStatusSent {
		t.Fatalf("status = %s, want sent", result.Message.Status)
	}
	if result.Message.Sender != enums.SenderRoleBuyer {
		t.Fatalf("sender = %s, want buyer", result.Message.Sender)
	}
	if result.TempID != "tmp-17" {
		t.Fatalf("temp id = %q, want tmp-17", result.TempID)
	}
	if len(f.broadcaster.broadcasts) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(f.broadcaster.broadcasts))
	}
	if f.broadcaster.conversationID != f.conversationID {
		t.Fatalf("broadcast room = %s, want %s", f.broadcaster.conversationID, f.conversationID)
	}
	if f.broadcaster.broadcasts[0].TempID != "tmp-17" {
		t.Fatal("temp id must travel with the broadcast")
	}
}

func TestSend_sellerSideResolvesRole(t *testing.T) {
	f := newMessageFixture(t)

	result, err := f.svc.Send(context.Background(), SendParams{
		ConversationID: f.conversationID,
		SenderUserID:   f.sellerUserID,
		Text:           "Yes, pickup today",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if result.Message.Sender != enums.SenderRoleSeller {
		t.Fatalf("sender = %s, want seller", result.Message.Sender)
	}
}

func TestSend_rejectsBlankText(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.svc.Send(context.Background(), SendParams{
		ConversationID: f.conversationID,
		SenderUserID:   f.buyerUserID,
		Text:           "   \n\t ",
	})
	wantMessageCode(t, err, pkgerrors.CodeValidation)
	if len(f.repo.appended) != 0 {
		t.Fatal("blank message must not persist")
	}
}

func TestSend_rejectsOversizedText(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.svc.Send(context.Background(), SendParams{
		ConversationID: f.conversationID,
		SenderUserID:   f.buyerUserID,
		Text:           strings.Repeat("a", maxMessageLength+1),
	})
	wantMessageCode(t, err, pkgerrors.CodeValidation)
}

func TestSend_rejectsOutsider(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.svc.Send(context.Background(), SendParams{
		ConversationID: f.conversationID,
		SenderUserID:   uuid.New(),
		Text:           "let me in",
	})
	wantMessageCode(t, err, pkgerrors.CodeForbidden)
	if len(f.broadcaster.broadcasts) != 0 {
		t.Fatal("rejected message must not broadcast")
	}
}

func TestList_requiresParticipant(t *testing.T) {
	f := newMessageFixture(t)
	f.repo.listed = []models.Message{{ConversationID: f.conversationID}}

	page, err := f.svc.List(context.Background(), f.buyerUserID, f.conversationID, pagination.Params{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Messages) != 1 {
		t.Fatalf("page = %d messages, want 1", len(page.Messages))
	}
	if page.NextCursor != "" {
		t.Fatal("a short history must not produce a cursor")
	}

	if _, err := f.svc.List(context.Background(), uuid.New(), f.conversationID, pagination.Params{}); err == nil {
		t.Fatal("outsider must not read the conversation")
	}
}

func TestList_pagesOldestLastWithCursor(t *testing.T) {
	f := newMessageFixture(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Repo order is newest first.
	for i := 0; i < 3; i++ {
		f.repo.listed = append(f.repo.listed, models.Message{
			ID:             uuid.New(),
			ConversationID: f.conversationID,
			CreatedAt:      base.Add(-time.Duration(i) * time.Minute),
		})
	}

	page, err := f.svc.List(context.Background(), f.buyerUserID, f.conversationID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Messages) != 2 {
		t.Fatalf("page = %d messages, want 2", len(page.Messages))
	}
	if page.NextCursor == "" {
		t.Fatal("a full page must carry a cursor for older messages")
	}
	if !page.Messages[0].CreatedAt.Before(page.Messages[1].CreatedAt) {
		t.Fatal("page must be in send order")
	}

	cursor, err := pagination.ParseCursor(page.NextCursor)
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if cursor.ID != page.Messages[0].ID {
		t.Fatal("cursor must point at the oldest returned message")
	}
}

func TestList_rejectsMalformedCursor(t *testing.T) {
	f := newMessageFixture(t)

	_, err := f.svc.List(context.Background(), f.buyerUserID, f.conversationID, pagination.Params{Cursor: "not-base64!"})
	wantMessageCode(t, err, pkgerrors.CodeValidation)
}

func TestAcknowledgeDelivered_counterpartyOnly(t *testing.T) {
	f := newMessageFixture(t)
	message := f.storedMessage(f.buyerUserID)

	if err := f.svc.AcknowledgeDelivered(context.Background(), f.sellerUserID, message.ID); err != nil {
		t.Fatalf("AcknowledgeDelivered: %v", err)
	}
	if len(f.repo.delivered) != 1 || f.repo.delivered[0] != message.ID {
		t.Fatalf("delivered = %v, want [%s]", f.repo.delivered, message.ID)
	}
}

func TestAcknowledgeDelivered_rejectsSender(t *testing.T) {
	f := newMessageFixture(t)
	message := f.storedMessage(f.buyerUserID)

	err := f.svc.AcknowledgeDelivered(context.Background(), f.buyerUserID, message.ID)
	wantMessageCode(t, err, pkgerrors.CodeValidation)
	if len(f.repo.delivered) != 0 {
		t.Fatal("own-message ack must not persist")
	}
}

func TestAcknowledgeRead_unknownMessage(t *testing.T) {
	f := newMessageFixture(t)
	err := f.svc.AcknowledgeRead(context.Background(), f.sellerUserID, uuid.New())
	wantMessageCode(t, err, pkgerrors.CodeNotFound)
}
