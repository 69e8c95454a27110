// Package notifier hands user-facing notifications to the delivery service.
package notifier

import (
	"context"
	"fmt"
	"log"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
)

const RoutingKeyFeedbackRequested = "notification.feedback_requested"

// Sinks accepted by New.
const (
	SinkBroker  = "broker"
	SinkConsole = "console"
)

type Notification struct {
	Kind      string        `json:"kind"`
	SubjectID string        `json:"subject_id"`
	BookingID string        `json:"booking_id"`
	Pillar    models.Pillar `json:"pillar"`
	Title     string        `json:"title"`
	Message   string        `json:"message"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// FeedbackRequest is sent once a session has been completed.
func FeedbackRequest(b *models.Booking) Notification {
	return Notification{
		Kind:      RoutingKeyFeedbackRequested,
		SubjectID: b.SubjectID,
		BookingID: b.ID,
		Pillar:    b.Pillar,
		Title:     "How was your session?",
		Message:   fmt.Sprintf("Your %s session on %s at %s is complete. Tell us how it went.", b.Pillar, b.Date, b.StartTime),
	}
}

// New picks the notifier for sink. The console sink only logs, for local runs
// without a delivery service.
func New(sink string, pub JSONPublisher) (Notifier, error) {
	switch sink {
	case SinkBroker:
		return NewBroker(pub), nil
	case SinkConsole:
		return NewConsole(), nil
	default:
		return nil, fmt.Errorf("unknown notification sink %q", sink)
	}
}

type ConsoleNotifier struct{}

func NewConsole() *ConsoleNotifier {
	return &ConsoleNotifier{}
}

func (ConsoleNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("[Notify] %s -> %s :: %s", n.Kind, n.SubjectID, n.Title)
	return nil
}

type JSONPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, payload any) error
}

// BrokerNotifier publishes notifications for the delivery service to pick up.
type BrokerNotifier struct {
	pub JSONPublisher
}

func NewBroker(pub JSONPublisher) *BrokerNotifier {
	return &BrokerNotifier{pub: pub}
}

func (b *BrokerNotifier) Notify(ctx context.Context, n Notification) error {
	return b.pub.PublishJSON(ctx, n.Kind, n)
}
