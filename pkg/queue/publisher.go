// Package queue publishes assignment events to RabbitMQ so downstream
// consumers (notifications, analytics) can react to routing changes.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mehdierdemdede/leadflow/pkg/assignment"
	"github.com/mehdierdemdede/leadflow/pkg/logger"
)

const (
	ExchangeName = "ex.leadflow"

	RoutingKeyAssigned   = "lead.assigned"
	RoutingKeyReassigned = "lead.reassigned"
	RoutingKeyUnassigned = "lead.unassigned"
)

// Publisher fans assignment events out to the exchange. It satisfies
// assignment.Recorder; the engine treats publish failures as non-fatal and
// the durable event log remains the source of truth.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      logger.Logger
}

type eventMessage struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	LeadID      string    `json:"lead_id"`
	AgentID     string    `json:"agent_id,omitempty"`
	PrevAgentID string    `json:"prev_agent_id,omitempty"`
	Mode        string    `json:"mode"`
	Reason      string    `json:"reason,omitempty"`
	Day         string    `json:"day,omitempty"`
	PrevDay     string    `json:"prev_day,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewPublisher connects to RabbitMQ and declares the exchange. An empty
// exchange name falls back to ExchangeName.
func NewPublisher(url, exchange string, log logger.Logger) (*Publisher, error) {
	if log == nil {
		log = logger.Default()
	}
	if exchange == "" {
		exchange = ExchangeName
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

// Record publishes the event on the exchange with a routing key derived from
// the event type.
func (p *Publisher) Record(ctx context.Context, event assignment.Event) error {
	body, err := json.Marshal(eventMessage{
		ID:          event.ID,
		Type:        string(event.Type),
		LeadID:      event.LeadID,
		AgentID:     event.AgentID,
		PrevAgentID: event.PrevAgentID,
		Mode:        string(event.Mode),
		Reason:      event.Reason,
		Day:         string(event.Day),
		PrevDay:     string(event.PrevDay),
		OccurredAt:  event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	err = p.ch.PublishWithContext(ctx,
		p.exchange,
		routingKey(event.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close tears down the channel and connection.
func (p *Publisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.log.Warn("failed to close RabbitMQ channel", "error", err)
	}
	return p.conn.Close()
}

func routingKey(t assignment.EventType) string {
	switch t {
	case assignment.EventReassigned:
		return RoutingKeyReassigned
	case assignment.EventUnassigned:
		return RoutingKeyUnassigned
	default:
		return RoutingKeyAssigned
	}
}
