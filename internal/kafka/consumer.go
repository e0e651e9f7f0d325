package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/hookrelay/internal/model"
	"github.com/segmentio/kafka-go"
)

// AttemptHeader carries how many times a record has been redelivered.
const AttemptHeader = "x-hookrelay-attempt"

// ErrorHeader carries the failure that sent a record to the dead-letter topic.
const ErrorHeader = "x-hookrelay-error"

type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1B
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // 0 = sync commit on each Commit call
	MaxWait        time.Duration // default 250ms
}

type Message = kafka.Message

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer is a thin wrapper around segmentio/kafka-go Reader.
type Consumer struct {
	r reader
}

func NewConsumerFromConfig(c Config) *Consumer {
	min := c.MinBytes
	if min <= 0 {
		min = 1
	}
	max := c.MaxBytes
	if max <= 0 {
		max = 10 << 20 // 10MB
	}

	mw := c.MaxWait
	if mw <= 0 {
		mw = 250 * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       min,
		MaxBytes:       max,
		CommitInterval: c.CommitInterval,
		MaxWait:        mw,
	})

	return &Consumer{r: r}
}

// FetchBatch blocks until one message arrives, then keeps collecting until max
// messages are buffered or wait has elapsed since the first one.
func (c *Consumer) FetchBatch(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	if max < 1 {
		max = 1
	}

	first, err := c.r.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	batch := []Message{first}
	if max == 1 || wait <= 0 {
		return batch, nil
	}

	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	for len(batch) < max {
		m, err := c.r.FetchMessage(wctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				break
			}
			// keep what we have; uncommitted messages are fetched again after restart
			return batch, err
		}
		batch = append(batch, m)
	}
	return batch, nil
}

func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }

// ToRecord converts a fetched message. The key is the message id; keyless messages
// (plain relays) get a topic/partition/offset id.
func ToRecord(m Message) model.Record {
	id := string(m.Key)
	if id == "" {
		id = fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
	}
	rec := model.Record{ID: id, Body: string(m.Value)}
	for _, h := range m.Headers {
		if h.Key == AttemptHeader {
			if n, err := strconv.Atoi(string(h.Value)); err == nil && n > 0 {
				rec.Attempt = n
			}
		}
	}
	return rec
}

// FromRecord builds the message that redelivers rec to topic.
func FromRecord(topic string, rec model.Record, headers ...kafka.Header) Message {
	hs := append([]kafka.Header{{Key: AttemptHeader, Value: []byte(strconv.Itoa(rec.Attempt))}}, headers...)
	return Message{
		Topic:   topic,
		Key:     []byte(rec.ID),
		Value:   []byte(rec.Body),
		Headers: hs,
	}
}
