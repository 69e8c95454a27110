package notifier

import (
	"context"
	"testing"

	"github.com/onhighmng/melhor-saude-final-57-sub010/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJSONPublisher struct {
	key     string
	payload any
}

func (m *mockJSONPublisher) PublishJSON(_ context.Context, routingKey string, payload any) error {
	m.key, m.payload = routingKey, payload
	return nil
}

func TestBrokerNotifier_PublishesFeedbackRequest(t *testing.T) {
	pub := &mockJSONPublisher{}
	b := &models.Booking{ID: "b-1", SubjectID: "sub-1", Pillar: models.PillarPhysical, Date: "2026-03-10", StartTime: "09:30"}

	require.NoError(t, NewBroker(pub).Notify(context.Background(), FeedbackRequest(b)))

	assert.Equal(t, RoutingKeyFeedbackRequested, pub.key)
	n, ok := pub.payload.(Notification)
	require.True(t, ok)
	assert.Equal(t, "sub-1", n.SubjectID)
	assert.Equal(t, "b-1", n.BookingID)
	assert.Contains(t, n.Message, "2026-03-10 at 09:30")
}

func TestConsoleNotifier(t *testing.T) {
	assert.NoError(t, NewConsole().Notify(context.Background(), Notification{Kind: "x", SubjectID: "sub-1"}))
}

func TestNew_PicksSink(t *testing.T) {
	pub := &mockJSONPublisher{}

	n, err := New(SinkBroker, pub)
	require.NoError(t, err)
	assert.IsType(t, &BrokerNotifier{}, n)

	n, err = New(SinkConsole, pub)
	require.NoError(t, err)
	assert.IsType(t, &ConsoleNotifier{}, n)
	require.NoError(t, n.Notify(context.Background(), Notification{Kind: RoutingKeyFeedbackRequested, SubjectID: "sub-1"}))
	assert.Empty(t, pub.key)

	_, err = New("pigeon", pub)
	assert.Error(t, err)
}
