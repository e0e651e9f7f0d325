package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/util"
	"github.com/segmentio/kafka-go"
)

type ProducerConfig struct {
	Brokers      []string
	Topic        string        // default topic for Enqueue
	WriteTimeout time.Duration // default 5s
	BatchBytes   int64         // largest message accepted, default 1MiB (kafka-go default)
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes queue messages. Every message names its topic, so one producer serves
// the main topic and the dead-letter topic.
type Producer struct {
	w       writer
	topic   string
	timeout time.Duration
}

func NewProducer(c ProducerConfig) *Producer {
	timeout := c.WriteTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           timeout,
		BatchTimeout:           10 * time.Millisecond,
		BatchBytes:             c.BatchBytes,
		AllowAutoTopicCreation: false,
	}

	return &Producer{w: w, topic: c.Topic, timeout: timeout}
}

// Enqueue writes body to the default topic under a fresh ULID key and returns that id.
func (p *Producer) Enqueue(ctx context.Context, body []byte) (string, error) {
	id := util.NewID()
	err := p.Publish(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(id),
		Value: body,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Publish writes msgs and waits for the brokers to acknowledge them.
func (p *Producer) Publish(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		err = fmt.Errorf("kafka write %d message(s): %w", len(msgs), err)
		if tooLarge(err) {
			return apperr.Wrap(apperr.TooLarge, "payload too large", err)
		}
		return err
	}
	return nil
}

// tooLarge reports a message rejected for its size, by the writer or by the broker.
func tooLarge(err error) bool {
	var mtl kafka.MessageTooLargeError
	if errors.As(err, &mtl) || errors.Is(err, kafka.MessageSizeTooLarge) {
		return true
	}
	var werrs kafka.WriteErrors
	if errors.As(err, &werrs) {
		for _, e := range werrs {
			if e != nil && tooLarge(e) {
				return true
			}
		}
	}
	return false
}

func (p *Producer) Close() error { return p.w.Close() }

// Ping dials the first reachable broker, used at startup to fail fast.
func Ping(ctx context.Context, brokers []string) error {
	var last error
	for _, b := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", b)
		if err == nil {
			return conn.Close()
		}
		last = err
	}
	if last == nil {
		last = fmt.Errorf("no brokers configured")
	}
	return fmt.Errorf("kafka ping: %w", last)
}
