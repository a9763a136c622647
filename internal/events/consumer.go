package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// PaymentEvent represents a payment-related event.
type PaymentEvent struct {
	ID        string           `json:"id"`
	Type      PaymentEventType `json:"type"`
	PaymentID string           `json:"payment_id"`
	OrderID   string           `json:"order_id"`
	Status    string           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

// PaymentHandler applies payment outcomes to orders.
type PaymentHandler interface {
	MarkPaid(ctx context.Context, orderID int64) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConsumer consumes payment events from Kafka.
type KafkaConsumer struct {
	reader   messageReader
	handler  PaymentHandler
	logger   *logging.LoggerV2
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewKafkaConsumer creates a new Kafka-based event consumer.
func NewKafkaConsumer(cfg config.KafkaConfig, handler PaymentHandler, logger *logging.LoggerV2) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
	return newKafkaConsumer(reader, handler, logger)
}

func newKafkaConsumer(reader messageReader, handler PaymentHandler, logger *logging.LoggerV2) *KafkaConsumer {
	return &KafkaConsumer{
		reader:  reader,
		handler: handler,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}
}

// Start consumes events until ctx is done or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				select {
				case <-c.stopCh:
					c.logger.Info("Kafka consumer stopped")
					return nil
				default:
				}
				c.logger.Error("Failed to read message", logging.Fields{"error": err.Error()})
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer. It is safe to call more than once.
func (c *KafkaConsumer) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.reader.Close()
	})
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message", logging.Fields{
		"topic":     msg.Topic,
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", logging.Fields{"error": err.Error()})
		return
	}

	switch event.Type {
	case PaymentEventCompleted:
		c.handlePaymentCompleted(ctx, &event)
	case PaymentEventFailed:
		// The order stays pending so that the client can restore or retry it.
		c.logger.Warn("Payment failed", logging.Fields{
			"payment_id": event.PaymentID,
			"order_id":   event.OrderID,
			"status":     event.Status,
		})
	default:
		c.logger.Debug("Ignoring unknown event type", logging.Fields{"type": event.Type})
	}
}

func (c *KafkaConsumer) handlePaymentCompleted(ctx context.Context, event *PaymentEvent) {
	c.logger.Info("Handling payment completed event", logging.Fields{
		"payment_id": event.PaymentID,
		"order_id":   event.OrderID,
	})

	orderID, err := strconv.ParseInt(event.OrderID, 10, 64)
	if err != nil {
		c.logger.Error("Invalid order id in payment event", logging.Fields{
			"event_id": event.ID,
			"order_id": event.OrderID,
		})
		return
	}

	if err := c.handler.MarkPaid(ctx, orderID); err != nil {
		c.logger.Error("Failed to mark order paid", logging.Fields{
			"order_id": orderID,
			"error":    err.Error(),
		})
	}
}
