package kafka

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

func TestProducer_PublishEvent(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, log.WithField("component", "kafka-producer-test"))

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicSalesEvents {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "sale:sale-123" {
			return fmt.Errorf("unexpected key %s", key)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderEventType {
			return fmt.Errorf("unexpected headers %v", msg.Headers)
		}
		return nil
	})

	err := producer.PublishEvent(TopicSalesEvents, "sale:sale-123", map[string]string{"status": "pending"},
		map[string]string{HeaderEventType: domain.EventSaleCreated})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicSalesEvents, "sale:sale-123", struct{}{}, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	producer := newProducer(mockProducer, nil)

	if err := producer.PublishEvent(TopicSalesEvents, "k", make(chan int), nil); err == nil {
		t.Fatal("expected marshal error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewEnvelope(t *testing.T) {
	publishedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))

	envelope := NewEnvelope(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.AggregateSale,
		AggregateID:   "sale-1",
		EventType:     domain.EventSaleCompleted,
		Payload:       []byte(`{"total":"104.00"}`),
	}, publishedAt)

	if envelope.Key() != "sale:sale-1" {
		t.Errorf("expected key sale:sale-1, got %s", envelope.Key())
	}
	if envelope.PublishedAt.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %s", envelope.PublishedAt.Location())
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	payload, ok := decoded["payload"].(map[string]any)
	if !ok || payload["total"] != "104.00" {
		t.Errorf("payload must be embedded as JSON object, got %v", decoded["payload"])
	}
}

func TestNewEnvelope_EmptyPayloadAndKey(t *testing.T) {
	envelope := NewEnvelope(domain.OutboxMessage{ID: "outbox-2"}, time.Now())

	if string(envelope.Payload) != "null" {
		t.Errorf("expected null payload, got %s", envelope.Payload)
	}
	if envelope.Key() != "outbox-2" {
		t.Errorf("expected key to fall back to outbox id, got %s", envelope.Key())
	}
}

func TestProducerConfig(t *testing.T) {
	config := producerConfig()
	if err := config.Validate(); err != nil {
		t.Fatalf("producer config must be valid: %v", err)
	}
	if !config.Producer.Idempotent || config.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatal("producer must be idempotent with acks=all")
	}
	if config.ClientID != clientID {
		t.Errorf("expected client id %s, got %s", clientID, config.ClientID)
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	if _, err := NewProducer(nil, nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}
