package consumer

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/repository"
	amqp "github.com/rabbitmq/amqp091-go"
)

const RoutingKeyProviderUpserted = "directory.provider_upserted"

// ProviderMessage is what the directory service publishes for each provider change.
type ProviderMessage struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Pillar models.Pillar `json:"pillar"`
	Active bool          `json:"active"`
}

type ProviderConsumer struct {
	repo repository.ProviderRepository
}

func NewProviderConsumer(repo repository.ProviderRepository) *ProviderConsumer {
	return &ProviderConsumer{repo: repo}
}

// Start listens for messages and upserts providers into the local DB.
func (pc *ProviderConsumer) Start(msgs <-chan amqp.Delivery) {
	go func() {
		for msg := range msgs {
			pc.handleMessage(msg)
		}
		log.Println("[ProviderConsumer] channel closed, stopping consumer")
	}()
}

func (pc *ProviderConsumer) handleMessage(msg amqp.Delivery) {
	var m ProviderMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil {
		log.Printf("[ProviderConsumer] failed to unmarshal: %v", err)
		msg.Nack(false, false)
		return
	}
	if strings.TrimSpace(m.ID) == "" || !m.Pillar.Valid() {
		log.Printf("[ProviderConsumer] dropping invalid provider %q (pillar %q)", m.ID, m.Pillar)
		msg.Nack(false, false)
		return
	}

	now := time.Now().UTC()
	provider := &models.Provider{
		ID:        m.ID,
		Name:      m.Name,
		Pillar:    m.Pillar,
		Active:    m.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := pc.repo.Upsert(context.Background(), provider); err != nil {
		log.Printf("[ProviderConsumer] failed to upsert provider %s: %v", m.ID, err)
		msg.Nack(false, true) // requeue
		return
	}

	log.Printf("[ProviderConsumer] synced provider %s: %s", m.ID, m.Name)
	msg.Ack(false)
}
