package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/seangolding876/partsfinda-backend/internal/messages"
	"github.com/seangolding876/partsfinda-backend/pkg/config"
	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	"github.com/seangolding876/partsfinda-backend/pkg/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub, err := NewHub(HubParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	return hub
}

func newTestClient(t *testing.T, hub *Hub, userID uuid.UUID) *Client {
	t.Helper()
	return newClient(hub, nil, userID, config.RealtimeConfig{SendBuffer: 16}, logger.New(logger.Options{ServiceName: "test"}), nil, nil)
}

func readFrame(t *testing.T, client *Client) Envelope {
	t.Helper()
	select {
	case frame := <-client.send:
		var envelope Envelope
		if err := json.Unmarshal(frame, &envelope); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return envelope
	default:
		t.Fatal("no frame queued")
	}
	return Envelope{}
}

func noFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case frame := <-client.send:
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func TestBroadcastNewMessage_reachesEveryRoomMember(t *testing.T) {
	hub := newTestHub(t)
	conversationID := uuid.New()

	sender := newTestClient(t, hub, uuid.New())
	peer := newTestClient(t, hub, uuid.New())
	outsider := newTestClient(t, hub, uuid.New())
	hub.join(conversationID, sender)
	hub.join(conversationID, peer)

	message := &models.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       sender.userID,
		Sender:         enums.SenderRoleBuyer,
		Text:           "still available?",
		Status:         enums.MessageStatusSent,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	hub.BroadcastNewMessage(conversationID, messages.Broadcast{Message: message, TempID: "tmp-1"})

	for _, client := range []*Client{sender, peer} {
		envelope := readFrame(t, client)
		if envelope.Event != EventNewMessage {
			t.Fatalf("event = %s, want %s", envelope.Event, EventNewMessage)
		}
		var payload NewMessagePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			t.Fatalf("unmarshal payload: %v", err)
		}
		if payload.ID != message.ID || payload.Text != message.Text {
			t.Fatalf("payload = %+v", payload)
		}
		if payload.TempID != "tmp-1" {
			t.Fatal("temp id must ride along with the broadcast")
		}

		updated := readFrame(t, client)
		if updated.Event != EventConversationUpdated {
			t.Fatalf("second event = %s, want %s", updated.Event, EventConversationUpdated)
		}
	}
	noFrame(t, outsider)
}

func TestBroadcastNewMessage_suppressesDuplicateIDs(t *testing.T) {
	hub := newTestHub(t)
	conversationID := uuid.New()
	client := newTestClient(t, hub, uuid.New())
	hub.join(conversationID, client)

	message := &models.Message{ID: uuid.New(), ConversationID: conversationID, CreatedAt: time.Now()}
	hub.BroadcastNewMessage(conversationID, messages.Broadcast{Message: message})
	hub.BroadcastNewMessage(conversationID, messages.Broadcast{Message: message})

	if got := readFrame(t, client); got.Event != EventNewMessage {
		t.Fatalf("event = %s", got.Event)
	}
	if got := readFrame(t, client); got.Event != EventConversationUpdated {
		t.Fatalf("event = %s", got.Event)
	}
	// The second broadcast repeats conversation_updated but never the message.
	if got := readFrame(t, client); got.Event != EventConversationUpdated {
		t.Fatalf("event = %s, want suppressed duplicate", got.Event)
	}
	noFrame(t, client)
}

func TestBroadcastTyping_skipsTypist(t *testing.T) {
	hub := newTestHub(t)
	conversationID := uuid.New()

	typist := newTestClient(t, hub, uuid.New())
	watcher := newTestClient(t, hub, uuid.New())
	hub.join(conversationID, typist)
	hub.join(conversationID, watcher)

	hub.BroadcastTyping(context.Background(), conversationID, typist.userID, true)

	envelope := readFrame(t, watcher)
	if envelope.Event != EventUserTyping {
		t.Fatalf("event = %s, want %s", envelope.Event, EventUserTyping)
	}
	var payload UserTypingPayload
	if err := json.Unmarshal(envelope.Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.UserID != typist.userID || !payload.Typing {
		t.Fatalf("payload = %+v", payload)
	}
	noFrame(t, typist)
}

func TestRemoveClient_dropsAllRooms(t *testing.T) {
	hub := newTestHub(t)
	first := uuid.New()
	second := uuid.New()
	client := newTestClient(t, hub, uuid.New())
	hub.join(first, client)
	hub.join(second, client)

	hub.removeClient(client)

	hub.BroadcastNewMessage(first, messages.Broadcast{Message: &models.Message{ID: uuid.New()}})
	hub.BroadcastNewMessage(second, messages.Broadcast{Message: &models.Message{ID: uuid.New()}})
	noFrame(t, client)
}

func TestBroadcast_racingDisconnectDoesNotPanic(t *testing.T) {
	hub := newTestHub(t)
	conversationID := uuid.New()

	for i := 0; i < 500; i++ {
		// Tiny buffer so broadcasts hit the slow-client close path too.
		client := newClient(hub, nil, uuid.New(), config.RealtimeConfig{SendBuffer: 1}, logger.New(logger.Options{ServiceName: "test"}), nil, nil)
		hub.join(conversationID, client)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				hub.BroadcastNewMessage(conversationID, messages.Broadcast{
					Message: &models.Message{ID: uuid.New(), ConversationID: conversationID},
				})
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.close()
		}()
		wg.Wait()
	}
}

func TestEnqueue_afterCloseDropsFrame(t *testing.T) {
	hub := newTestHub(t)
	conversationID := uuid.New()
	client := newTestClient(t, hub, uuid.New())
	hub.join(conversationID, client)

	client.close()
	client.enqueue([]byte(`{"event":"new_message"}`))
	noFrame(t, client)
}

func TestMarshalEnvelope_omitsEmptyTempID(t *testing.T) {
	frame, err := marshalEnvelope(EventNewMessage, NewMessagePayload{ID: uuid.New()})
	if err != nil {
		t.Fatalf("marshalEnvelope: %v", err)
	}
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(envelope.Data, &raw); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if _, ok := raw["tempId"]; ok {
		t.Fatal("empty temp id must be omitted")
	}
}
