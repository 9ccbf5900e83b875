// Package mail publishes templated email jobs to RabbitMQ. Rendering and SMTP
// delivery happen in a separate worker that consumes the queue.
package mail

import (
	"coachshare/backend/internal/config"
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Template names understood by the mail worker.
const (
	TemplateInvitation    = "athlete_invitation"
	TemplatePasswordReset = "password_reset"
)

// Message is one email job.
type Message struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data,omitempty"`
}

// Mailer queues an email for delivery.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPMailer publishes Message values as persistent JSON messages.
type AMQPMailer struct {
	conn       *amqp.Connection
	ch         channel
	exchange   string
	routingKey string
	log        *zap.Logger
}

// NewAMQPMailer dials RabbitMQ, declares a durable direct exchange and queue,
// and binds them with the queue name as routing key.
func NewAMQPMailer(cfg config.RabbitMQConfig, log *zap.Logger) (*AMQPMailer, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	q, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(q.Name, q.Name, cfg.Exchange, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return &AMQPMailer{conn: conn, ch: ch, exchange: cfg.Exchange, routingKey: q.Name, log: log}, nil
}

func (m *AMQPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" || msg.Template == "" {
		return fmt.Errorf("mail: recipient and template are required")
	}
	body, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	err = m.ch.PublishWithContext(ctx, m.exchange, m.routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         msg.Template,
		Body:         body,
	})
	if err != nil {
		m.log.Error("publish mail job", zap.String("template", msg.Template), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the channel and the underlying connection.
func (m *AMQPMailer) Close() error {
	if err := m.ch.Close(); err != nil {
		return err
	}
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Shutdown is Close under the name the dependency container looks for.
func (m *AMQPMailer) Shutdown() error {
	return m.Close()
}

// LogMailer writes jobs to the log instead of a queue. Used when RabbitMQ is
// not configured so invitation links are still visible during development.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("mail job (not queued)",
		zap.String("to", msg.To),
		zap.String("template", msg.Template),
		zap.Any("data", msg.Data),
	)
	return nil
}
