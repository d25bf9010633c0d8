package app

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/messaging/kafka"
)

// initKafkaProducer создаёт producer, если брокеры заданы.
// Пустой список брокеров не ошибка: события тогда пишутся в лог.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, logger.WithField("component", "kafka-producer"))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
		return
	}
	logger.Info("kafka producer closed")
}

// logPublisher «публикует» события outbox в лог, когда Kafka не настроена.
type logPublisher struct {
	logger *log.Entry
}

func (p logPublisher) Publish(event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"event_id":       event.ID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"payload":        string(event.Payload),
	}).Info("outbox event")
	return nil
}

const (
	breakerMaxFailures  = 5
	breakerResetTimeout = 30 * time.Second
)

// newOutboxPublishers возвращает основной паблишер и паблишер DLQ.
// Основной паблишер защищён предохранителем, DLQ публикуется напрямую.
func newOutboxPublishers(producer *kafka.Producer, topic string, logger *log.Entry) (domain.OutboxPublisher, domain.OutboxPublisher) {
	if producer == nil {
		return logPublisher{logger: logger.WithField("component", "outbox-log")}, nil
	}
	primary := kafka.NewBreakerPublisher(
		kafka.NewOutboxPublisher(producer, topic),
		breakerMaxFailures, breakerResetTimeout,
		logger.WithField("component", "kafka-breaker"),
	)
	return primary, kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)
}
