package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpup/prefab/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the topic exchange all events are published to
	DefaultExchange = "safepath"

	// SOSDispatchQueue holds SOS events for the notification dispatcher
	SOSDispatchQueue = "sos_dispatch"
)

// RabbitMQ publishes events to a topic exchange
type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQ connects to uri and declares the exchange and the SOS queue
func NewRabbitMQ(uri, exchange string) (*RabbitMQ, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	rmq := &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
	}

	if err := rmq.setupExchangeAndQueues(); err != nil {
		rmq.Close()
		return nil, fmt.Errorf("failed to setup exchanges and queues: %w", err)
	}

	return rmq, nil
}

// Publish sends a persistent JSON event with eventType as the routing key
func (r *RabbitMQ) Publish(ctx context.Context, eventType string, payload interface{}) error {
	event, err := NewEvent(eventType, payload, time.Now())
	if err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logging.Debugw(ctx, "Publishing event", "event.type", eventType, "event.id", event.ID)

	return r.channel.PublishWithContext(ctx,
		r.exchange, // exchange
		eventType,  // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Type:         eventType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
}

// Close closes the channel and connection
func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQ) setupExchangeAndQueues() error {
	err := r.channel.ExchangeDeclare(
		r.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %s: %w", r.exchange, err)
	}

	// SOS events must survive until a dispatcher picks them up
	return r.declareAndBindQueue(SOSDispatchQueue, []string{SOSRaisedEvent})
}

func (r *RabbitMQ) declareAndBindQueue(queueName string, routingKeys []string) error {
	queue, err := r.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %s: %w", queueName, err)
	}

	for _, key := range routingKeys {
		if err := r.channel.QueueBind(queue.Name, key, r.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue to %s: %w", queueName, err)
		}
	}
	return nil
}
