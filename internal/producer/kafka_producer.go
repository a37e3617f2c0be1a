package producer

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"

	"github.com/protein-tracker/stock-bot/internal/models"
)

// StockEventProducer publishes availability transitions to Kafka for
// downstream consumers such as the channel bridge
type StockEventProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewStockEventProducer(brokers []string, topic string) (*StockEventProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start Sarama producer: %w", err)
	}

	return &StockEventProducer{
		producer: producer,
		topic:    topic,
	}, nil
}

// Publish sends a batch of stock events, keyed by product id so that one
// product's transitions stay ordered within a partition
func (p *StockEventProducer) Publish(events []models.StockEvent) error {
	var msgs []*sarama.ProducerMessage

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Printf("Failed to marshal stock event: %v", err)
			continue
		}

		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.StringEncoder(ev.ProductID),
			Value: sarama.ByteEncoder(data),
		})
	}

	if len(msgs) == 0 {
		return nil
	}

	if err := p.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("failed to write batch to kafka: %w", err)
	}

	return nil
}

// Close closes the producer
func (p *StockEventProducer) Close() error {
	return p.producer.Close()
}
