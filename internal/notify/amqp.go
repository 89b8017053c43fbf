package notify

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/chatdesk/chatdesk/internal/logging"
)

// AMQPPublisher pushes events onto a durable RabbitMQ queue so external
// consumers (CRM sync, analytics) can follow conversation activity.
type AMQPPublisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *logging.Logger
}

// NewAMQPPublisher connects to the broker and declares the queue.
func NewAMQPPublisher(url, queue string, log *logging.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// durable, not auto-deleted, shared, declared synchronously
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	p := &AMQPPublisher{
		conn:    conn,
		channel: channel,
		queue:   queue,
		log:     log.Sub("amqp"),
	}
	p.log.Info().Str("queue", queue).Msg("broker connected")
	return p, nil
}

// Publish enqueues the event as JSON. Failures are logged, not returned.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("type", event.Type).Msg("encoding event")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		p.log.Error().Err(err).Str("queue", p.queue).Msg("publishing event")
		return
	}
	p.log.Debug().Str("type", event.Type).Str("queue", p.queue).Msg("event published")
}

// Close shuts down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.conn.Close()
		return err
	}
	return p.conn.Close()
}
