package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, log.WithField("test", "kafka"))

	assert.NoError(t, err)
	assert.Nil(t, producer)
}

func TestInitKafkaProducer_UnreachableBrokers(t *testing.T) {
	producer, err := initKafkaProducer([]string{"broker1:9092", "broker2:9092"}, log.WithField("test", "kafka"))

	assert.Error(t, err)
	assert.Nil(t, producer)
}

func TestCloseKafka_NilProducer(_ *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka"))
}

func TestNewOutboxPublishers_WithoutKafkaLogsEvents(t *testing.T) {
	publisher, dlq := newOutboxPublishers(nil, "sales.events", log.WithField("test", "kafka"))

	assert.Nil(t, dlq)
	assert.IsType(t, logPublisher{}, publisher)
	assert.NoError(t, publisher.Publish(domain.OutboxMessage{
		ID: "evt-1", AggregateType: "sale", AggregateID: "s-1", EventType: "sale.created", Payload: []byte(`{}`),
	}))
}
