package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	exchange, key string
	published     []amqp.Publishing
	err           error
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.exchange, f.key = exchange, key
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPMailer_Send(t *testing.T) {
	ch := &fakeChannel{}
	m := &AMQPMailer{ch: ch, exchange: "coachshare.mail", routingKey: "outbound", log: zap.NewNop()}

	err := m.Send(context.Background(), Message{
		To:       "a@x.com",
		Subject:  "You're invited",
		Template: TemplateInvitation,
		Data:     map[string]string{"link": "http://localhost/accept?token=abc"},
	})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	assert.Equal(t, "coachshare.mail", ch.exchange)
	assert.Equal(t, "outbound", ch.key)
	pub := ch.published[0]
	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, TemplateInvitation, pub.Type)

	var got Message
	require.NoError(t, sonic.Unmarshal(pub.Body, &got))
	assert.Equal(t, "a@x.com", got.To)
	assert.Equal(t, "http://localhost/accept?token=abc", got.Data["link"])
}

func TestAMQPMailer_SendErrors(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	m := &AMQPMailer{ch: ch, log: zap.NewNop()}

	assert.Error(t, m.Send(context.Background(), Message{Template: TemplateInvitation}))
	assert.Error(t, m.Send(context.Background(), Message{To: "a@x.com", Template: TemplateInvitation}))
	assert.Empty(t, ch.published)
}

func TestAMQPMailer_Close(t *testing.T) {
	ch := &fakeChannel{}
	m := &AMQPMailer{ch: ch, log: zap.NewNop()}
	require.NoError(t, m.Close())
	assert.True(t, ch.closed)
}

func TestLogMailer_NeverFails(t *testing.T) {
	assert.NoError(t, NewLogMailer(zap.NewNop()).Send(context.Background(), Message{To: "a@x.com"}))
}
