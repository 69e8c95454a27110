package realtime

import (
	"context"
	"fmt"
	"log"
)

const RoutingKeyPrefix = "subject."

// JSONPublisher is satisfied by rabbitmq.Publisher.
type JSONPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, payload any) error
}

// BrokerPublisher fans changes out through the message broker so every
// instance's hub hears about them, not only the one that made the write.
type BrokerPublisher struct {
	pub JSONPublisher
}

func NewBrokerPublisher(pub JSONPublisher) *BrokerPublisher {
	return &BrokerPublisher{pub: pub}
}

func (b *BrokerPublisher) Publish(ctx context.Context, change Change) error {
	if err := b.pub.PublishJSON(ctx, RoutingKeyPrefix+string(change.Kind), change); err != nil {
		return fmt.Errorf("publish %s for %s: %w", change.Kind, change.SubjectID, err)
	}
	return nil
}

// Announce publishes each change and logs failures. Callers never depend on
// delivery, so errors stop here.
func Announce(ctx context.Context, pub Publisher, changes ...Change) {
	if pub == nil {
		return
	}
	for _, ch := range changes {
		if err := pub.Publish(ctx, ch); err != nil {
			log.Printf("[Realtime] %v", err)
		}
	}
}
