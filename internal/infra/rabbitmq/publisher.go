package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"quizroom-service/internal/domain"
)

// DefaultQueue receives one message per finished session.
const DefaultQueue = "quiz.session.finished"

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher announces finished sessions on a durable queue.
type Publisher struct {
	conn  *amqp.Connection
	queue string
	now   func() time.Time

	// amqp channels must not be shared by concurrent publishers.
	mu sync.Mutex
	ch channel
}

// SessionFinishedMessage is the body published for a finished session.
type SessionFinishedMessage struct {
	Event   string                `json:"event"`
	Results domain.SessionResults `json:"results"`
}

func NewPublisher(url, queue string) (*Publisher, error) {
	if queue == "" {
		queue = DefaultQueue
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

	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &Publisher{conn: conn, ch: ch, queue: queue, now: time.Now}, nil
}

func newPublisherWithChannel(ch channel, queue string, now func() time.Time) *Publisher {
	return &Publisher{ch: ch, queue: queue, now: now}
}

func (p *Publisher) PublishResults(ctx context.Context, results domain.SessionResults) error {
	body, err := json.Marshal(SessionFinishedMessage{Event: "quiz_session_finished", Results: results})
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    results.SessionID,
			Timestamp:    p.now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish results %s: %w", results.SessionID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
