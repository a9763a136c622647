package events

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/money"
)

// EventType represents the type of a cart or order event.
type EventType string

const (
	EventTypeCartLineUpdated EventType = "cart.line_updated"
	EventTypeCartCleared     EventType = "cart.cleared"
	EventTypeOrderCreated    EventType = "order.created"
	EventTypeOrderPaid       EventType = "order.paid"
)

// Event is the envelope written to Kafka. Key is the aggregate id: the
// session id for cart events and the order id for order events.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Key       string            `json:"key"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// CartLineUpdated is the payload of EventTypeCartLineUpdated.
type CartLineUpdated struct {
	SessionID  string      `json:"session_id"`
	ProductID  string      `json:"product_id"`
	Quantity   int         `json:"quantity"`
	Removed    bool        `json:"removed"`
	TotalPrice money.Money `json:"total_price"`
	ItemCount  int         `json:"item_count"`
}

// Publisher is implemented by KafkaPublisher, NoopPublisher and MockEventPublisher.
type Publisher interface {
	PublishCartLineUpdated(ctx context.Context, sessionID string, snapshot *models.CartSnapshot) error
	PublishCartCleared(ctx context.Context, sessionID string) error
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderPaid(ctx context.Context, order *models.Order) error
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
	_ Publisher = (*MockEventPublisher)(nil)
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher publishes cart events and order events to their topics.
type KafkaPublisher struct {
	writer      messageWriter
	cartTopic   string
	ordersTopic string
	logger      *logging.LoggerV2
}

// NewKafkaPublisher creates a new Kafka-based event publisher. The writer has
// no default topic; every message names its own.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *logging.LoggerV2) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaPublisher(writer, cfg, logger)
}

func newKafkaPublisher(writer messageWriter, cfg config.KafkaConfig, logger *logging.LoggerV2) *KafkaPublisher {
	return &KafkaPublisher{
		writer:      writer,
		cartTopic:   cfg.CartTopic,
		ordersTopic: cfg.OrdersTopic,
		logger:      logger,
	}
}

// PublishCartLineUpdated publishes the snapshot produced by a cart mutation.
func (p *KafkaPublisher) PublishCartLineUpdated(ctx context.Context, sessionID string, snapshot *models.CartSnapshot) error {
	data, err := json.Marshal(CartLineUpdated{
		SessionID:  sessionID,
		ProductID:  snapshot.ProductID,
		Quantity:   snapshot.Quantity,
		Removed:    snapshot.Removed,
		TotalPrice: snapshot.TotalPrice,
		ItemCount:  snapshot.ItemCount,
	})
	if err != nil {
		return err
	}
	return p.publish(ctx, p.cartTopic, createEvent(EventTypeCartLineUpdated, sessionID, data))
}

// PublishCartCleared publishes a cart cleared event.
func (p *KafkaPublisher) PublishCartCleared(ctx context.Context, sessionID string) error {
	data, err := json.Marshal(map[string]string{"session_id": sessionID})
	if err != nil {
		return err
	}
	return p.publish(ctx, p.cartTopic, createEvent(EventTypeCartCleared, sessionID, data))
}

// PublishOrderCreated publishes an order created event.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	event := createEvent(EventTypeOrderCreated, strconv.FormatInt(order.ID, 10), data)
	event.Metadata["client_id"] = order.ClientID
	return p.publish(ctx, p.ordersTopic, event)
}

// PublishOrderPaid publishes an order paid event.
func (p *KafkaPublisher) PublishOrderPaid(ctx context.Context, order *models.Order) error {
	payload := struct {
		OrderID    int64       `json:"order_id"`
		OrderNum   string      `json:"order_num"`
		ClientID   string      `json:"client_id"`
		TotalPrice money.Money `json:"total_price"`
	}{
		OrderID:    order.ID,
		OrderNum:   order.OrderNum,
		ClientID:   order.ClientID,
		TotalPrice: order.TotalPrice,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := createEvent(EventTypeOrderPaid, strconv.FormatInt(order.ID, 10), data)
	event.Metadata["client_id"] = order.ClientID
	return p.publish(ctx, p.ordersTopic, event)
}

func createEvent(eventType EventType, key string, data []byte) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Key:       key,
		Data:      data,
		Metadata:  make(map[string]string),
		Timestamp: time.Now().UTC(),
	}
}

func (p *KafkaPublisher) publish(ctx context.Context, topic string, event *Event) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(event.Key),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event", logging.Fields{
			"event_id":   event.ID,
			"event_type": event.Type,
			"key":        event.Key,
			"error":      err.Error(),
		})
		return err
	}

	p.logger.Debug("Event published", logging.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"key":        event.Key,
	})
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// NoopPublisher drops every event. It is used when ENABLE_CART_EVENTS is off.
type NoopPublisher struct{}

func (NoopPublisher) PublishCartLineUpdated(context.Context, string, *models.CartSnapshot) error {
	return nil
}
func (NoopPublisher) PublishCartCleared(context.Context, string) error         { return nil }
func (NoopPublisher) PublishOrderCreated(context.Context, *models.Order) error { return nil }
func (NoopPublisher) PublishOrderPaid(context.Context, *models.Order) error    { return nil }

// MockEventPublisher records events for tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []*Event
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{
		Events: make([]*Event, 0),
	}
}

func (m *MockEventPublisher) PublishCartLineUpdated(ctx context.Context, sessionID string, snapshot *models.CartSnapshot) error {
	m.record(EventTypeCartLineUpdated, sessionID)
	return nil
}

func (m *MockEventPublisher) PublishCartCleared(ctx context.Context, sessionID string) error {
	m.record(EventTypeCartCleared, sessionID)
	return nil
}

func (m *MockEventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	m.record(EventTypeOrderCreated, strconv.FormatInt(order.ID, 10))
	return nil
}

func (m *MockEventPublisher) PublishOrderPaid(ctx context.Context, order *models.Order) error {
	m.record(EventTypeOrderPaid, strconv.FormatInt(order.ID, 10))
	return nil
}

// Types returns the recorded event types in publish order.
func (m *MockEventPublisher) Types() []EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]EventType, len(m.Events))
	for i, e := range m.Events {
		types[i] = e.Type
	}
	return types
}

func (m *MockEventPublisher) record(eventType EventType, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, &Event{Type: eventType, Key: key})
}
