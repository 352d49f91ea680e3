package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

var testAlert = Alert{
	Recipient:  "ops@example.com",
	Severity:   "Moderate",
	Vehicles:   2,
	Impact:     56,
	DetectedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
}

func TestFanout(t *testing.T) {
	var calls []string
	record := func(name string, err error) Notifier {
		return NotifierFunc(func(context.Context, Alert) error {
			calls = append(calls, name)
			return err
		})
	}
	errMail := errors.New("smtp down")
	errKafka := errors.New("broker down")

	err := Fanout{
		record("mail", errMail),
		record("nop", nil),
		record("kafka", errKafka),
	}.Notify(context.Background(), testAlert)

	assert.Equal(t, []string{"mail", "nop", "kafka"}, calls)
	assert.ErrorIs(t, err, errMail)
	assert.ErrorIs(t, err, errKafka)
	assert.Len(t, multierr.Errors(err), 2)

	assert.NoError(t, Fanout{Nop{}}.Notify(context.Background(), testAlert))
}

func TestNewMailerDefaults(t *testing.T) {
	_, err := NewMailer(MailConfig{})
	assert.Error(t, err)

	m, err := NewMailer(MailConfig{Username: "alerts@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, DefaultSMTPHost, m.cfg.Host)
	assert.Equal(t, DefaultSMTPPort, m.cfg.Port)
	assert.Equal(t, "alerts@example.com", m.cfg.From)
}

func TestMailerMessage(t *testing.T) {
	m, err := NewMailer(MailConfig{Username: "alerts@example.com", Password: "secret"})
	require.NoError(t, err)

	clip := filepath.Join(t.TempDir(), "accident_20240102030405_abcd1234.mp4")
	require.NoError(t, os.WriteFile(clip, []byte("not really a video"), 0o644))

	t.Run("with clip", func(t *testing.T) {
		alert := testAlert
		alert.ClipPath = clip
		msg, err := m.Message(alert)
		require.NoError(t, err)

		var buf bytes.Buffer
		_, err = msg.WriteTo(&buf)
		require.NoError(t, err)
		raw := buf.String()

		assert.Contains(t, raw, "Subject: Accident Detected Alert")
		assert.Contains(t, raw, "<ops@example.com>")
		assert.Contains(t, raw, "video/mp4")
		assert.Contains(t, raw, filepath.Base(clip))
		assert.Len(t, msg.GetAttachments(), 1)
	})

	t.Run("missing clip is skipped", func(t *testing.T) {
		alert := testAlert
		alert.ClipPath = filepath.Join(t.TempDir(), "gone.mp4")
		msg, err := m.Message(alert)
		require.NoError(t, err)
		assert.Empty(t, msg.GetAttachments())
	})

	t.Run("bad recipient", func(t *testing.T) {
		alert := testAlert
		alert.Recipient = "not an address"
		_, err := m.Message(alert)
		assert.Error(t, err)
	})
}

func TestAlertBody(t *testing.T) {
	body := alertBody(testAlert)
	assert.Contains(t, body, "Severity       : Moderate")
	assert.Contains(t, body, "Vehicles       : 2")
	assert.Contains(t, body, "Impact Score   : 56")
}

type fakeProducer struct {
	mu       sync.Mutex
	messages []*kafka.Message
	err      error
	closed   bool
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveries chan kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	deliveries <- msg
	return nil
}

func (p *fakeProducer) Flush(int) int { return 0 }

func (p *fakeProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func TestKafkaPublisher(t *testing.T) {
	p := &fakeProducer{}
	kp := newKafkaPublisher(p, "accidents", zaptest.NewLogger(t))

	alert := testAlert
	alert.ClipPath = "saved_events/a.mp4"
	require.NoError(t, kp.Notify(context.Background(), alert))
	kp.Close(time.Second)
	kp.Close(time.Second)

	require.Len(t, p.messages, 1)
	msg := p.messages[0]
	assert.Equal(t, "accidents", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("ops@example.com"), msg.Key)
	assert.True(t, p.closed)

	var event AccidentEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, AccidentEvent{
		Email:      "ops@example.com",
		Severity:   "Moderate",
		Impact:     56,
		Vehicles:   2,
		Clip:       "saved_events/a.mp4",
		DetectedAt: testAlert.DetectedAt,
	}, event)
}

func TestKafkaPublisherErrors(t *testing.T) {
	errQueue := errors.New("queue full")
	kp := newKafkaPublisher(&fakeProducer{err: errQueue}, "accidents", nil)
	defer kp.Close(0)

	assert.ErrorIs(t, kp.Notify(context.Background(), testAlert), errQueue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, kp.Notify(ctx, testAlert), context.Canceled)

	_, err := NewKafkaPublisher(KafkaConfig{}, nil)
	assert.Error(t, err)
}
