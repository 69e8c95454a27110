package consumer

import (
	"encoding/json"
	"log"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/realtime"
	amqp "github.com/rabbitmq/amqp091-go"
)

// SyncKeys are the routing keys every instance binds its private queue to.
var SyncKeys = []string{
	realtime.RoutingKeyPrefix + string(realtime.ChangeAllocation),
	realtime.RoutingKeyPrefix + string(realtime.ChangeBooking),
}

type Dispatcher interface {
	Dispatch(change realtime.Change)
}

// SyncConsumer feeds broker change messages into the local hub.
type SyncConsumer struct {
	hub Dispatcher
}

func NewSyncConsumer(hub Dispatcher) *SyncConsumer {
	return &SyncConsumer{hub: hub}
}

func (sc *SyncConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			sc.handleMessage(msg)
		}
		log.Println("[SyncConsumer] channel closed, stopping consumer")
	}()
}

func (sc *SyncConsumer) handleMessage(msg amqp.Delivery) {
	var change realtime.Change
	if err := json.Unmarshal(msg.Body, &change); err != nil || change.SubjectID == "" {
		log.Printf("[SyncConsumer] dropping malformed change: %v", err)
		msg.Nack(false, false)
		return
	}
	sc.hub.Dispatch(change)
	msg.Ack(false)
}
