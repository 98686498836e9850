// Package rabbit publishes order change events to a RabbitMQ topic exchange.
package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"travelbook/mq/mq"
)

const (
	exchangeName   = "order_events_exchange" // All order events go through this exchange
	publishTimeout = 5 * time.Second
)

// Define routing keys for different actions
const (
	orderCreateRoutingKey = "order.create"
	orderUpdateRoutingKey = "order.update"
	orderDeleteRoutingKey = "order.delete"
)

// Helper to get routing key based on action
func getRoutingKey(action mq.Action) string {
	switch action {
	case mq.ActionCreate:
		return orderCreateRoutingKey
	case mq.ActionUpdate:
		return orderUpdateRoutingKey
	case mq.ActionDelete:
		return orderDeleteRoutingKey
	}
	return "" // Should not happen with valid inputs
}

// amqpChannel is the part of *amqp091.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitOrderPublisher implements mq.OrderPublisher for RabbitMQ.
type RabbitOrderPublisher struct {
	mu      sync.Mutex // amqp channels are not safe for concurrent publishes
	conn    *amqp091.Connection
	channel amqpChannel
}

// NewRabbitOrderPublisher opens a channel on conn and declares the exchange.
func NewRabbitOrderPublisher(conn *amqp091.Connection) (*RabbitOrderPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	p, err := newPublisher(ch)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func newPublisher(ch amqpChannel) (*RabbitOrderPublisher, error) {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}
	return &RabbitOrderPublisher{channel: ch}, nil
}

// Publish sends an OrderMessage with the routing key of its action.
func (p *RabbitOrderPublisher) Publish(ctx context.Context, msg mq.OrderMessage) error {
	routingKey := getRoutingKey(msg.Action)
	if routingKey == "" {
		return fmt.Errorf("no routing key for action %d", int(msg.Action))
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		exchangeName, // exchange
		routingKey,   // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.ID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Close closes the channel and the RabbitMQ connection.
func (p *RabbitOrderPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
