package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/seangolding876/partsfinda-backend/pkg/enums"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
)

// SellerNotification is the payload handed to the notifier for one queue
// entry. The consumers of the notification topic render it into the seller's
// channels (email, SMS, push).
type SellerNotification struct {
	QueueEntryID uuid.UUID            `json:"queue_entry_id"`
	RequestID    uuid.UUID            `json:"request_id"`
	SellerID     uuid.UUID            `json:"seller_id"`
	SellerUserID uuid.UUID            `json:"seller_user_id"`
	PartName     string               `json:"part_name"`
	Category     string               `json:"category"`
	VehicleMake  string               `json:"vehicle_make"`
	VehicleModel string               `json:"vehicle_model"`
	VehicleYear  int                  `json:"vehicle_year"`
	Parish       string               `json:"parish"`
	Urgency      enums.RequestUrgency `json:"urgency"`
	Attempt      int                  `json:"attempt"`
}

// Notifier performs the seller-notification side effect for a claimed entry.
type Notifier interface {
	NotifySeller(ctx context.Context, notification SellerNotification) error
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

// PubSubNotifier publishes seller notifications to the configured topic.
// Delivery to the seller's actual channels is at-least-once from here on.
type PubSubNotifier struct {
	publisher publisher
}

// NewPubSubNotifier wraps a Pub/Sub publisher handle.
func NewPubSubNotifier(pub *gcppubsub.Publisher) (*PubSubNotifier, error) {
	if pub == nil {
		return nil, errors.New("notification publisher required")
	}
	return &PubSubNotifier{publisher: pub}, nil
}

func (n *PubSubNotifier) NotifySeller(ctx context.Context, notification SellerNotification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type":     "seller.request_matched",
			"queue_entry_id": notification.QueueEntryID.String(),
			"request_id":     notification.RequestID.String(),
			"seller_id":      notification.SellerID.String(),
			"published_at":   time.Now().UTC().Format(time.RFC3339Nano),
		},
	}

	result := n.publisher.Publish(ctx, msg)
	if result == nil {
		return pkgerrors.New(pkgerrors.CodeNotifierFailure, "publisher returned nil result")
	}
	if _, err := result.Get(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotifierFailure, err, "publish seller notification")
	}
	return nil
}
