package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"quiz-practice-service/internal/config"
	"quiz-practice-service/internal/domain"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RoutingKeyAttemptGraded is published once per newly graded attempt.
const RoutingKeyAttemptGraded = "quiz.attempt.graded"

// AttemptGradedEvent is the message body of RoutingKeyAttemptGraded.
type AttemptGradedEvent struct {
	EventType     string    `json:"eventType"`
	AttemptID     string    `json:"attemptId"`
	QuizSessionID string    `json:"quizSessionId"`
	UserID        string    `json:"userId"`
	CorrectCount  int       `json:"correctCount"`
	TotalCount    int       `json:"totalCount"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends quiz events to a durable topic exchange.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string

	mu sync.Mutex
	ch channel
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return &Publisher{conn: conn, exchange: exchange, ch: ch}, nil
}

// AttemptGraded publishes the event. Failures are logged; the attempt is already committed.
func (p *Publisher) AttemptGraded(ctx context.Context, a domain.Attempt) {
	event := AttemptGradedEvent{
		EventType:     RoutingKeyAttemptGraded,
		AttemptID:     a.ID,
		QuizSessionID: a.QuizSessionID,
		UserID:        a.UserID,
		CorrectCount:  a.CorrectCount,
		TotalCount:    a.TotalCount,
		SubmittedAt:   a.SubmittedAt,
	}
	if err := p.publish(ctx, RoutingKeyAttemptGraded, event); err != nil {
		config.WithContext(ctx).WithError(err).WithFields(logrus.Fields{
			"attempt_id":  a.ID,
			"routing_key": RoutingKeyAttemptGraded,
		}).Warn("event publish failed")
	}
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(pubCtx, p.exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	config.WithContext(ctx).WithField("routing_key", routingKey).Debug("event published")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
