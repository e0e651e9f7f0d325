package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/kafka"
	"github.com/jmehdipour/hookrelay/internal/metrics"
	"github.com/jmehdipour/hookrelay/internal/model"
	"github.com/jmehdipour/hookrelay/internal/notifier"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Fetcher interface {
	FetchBatch(ctx context.Context, max int, wait time.Duration) ([]kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

type BatchProcessor interface {
	ProcessBatch(ctx context.Context, records []model.Record) (notifier.Result, error)
}

// NotifierKafka:
// - fetches batches of records from Kafka,
// - hands each batch to the notifier,
// - republishes failed records (retry topic or dead-letter topic), then commits.
type NotifierKafka struct {
	// Dependencies
	Consumer  Fetcher
	Publisher Publisher
	Notifier  BatchProcessor
	Log       *zap.Logger

	// Behavior
	Topic           string        // source topic, retries go back here
	DeadLetterTopic string        // invalid or exhausted records
	BatchSize       int           // max records per ProcessBatch call
	BatchWait       time.Duration // max time to fill a batch after the first record
	MaxRedeliveries int           // retries through the queue before dead-lettering
}

// NewNotifierKafka builds a worker with sane defaults.
func NewNotifierKafka(consumer Fetcher, publisher Publisher, n BatchProcessor, topic, dlq string, log *zap.Logger) *NotifierKafka {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifierKafka{
		Consumer:        consumer,
		Publisher:       publisher,
		Notifier:        n,
		Log:             log,
		Topic:           topic,
		DeadLetterTopic: dlq,
		BatchSize:       10,
		BatchWait:       time.Second,
		MaxRedeliveries: 5,
	}
}

// Run processes batches until ctx is cancelled. It returns an error only when a batch
// could be neither delivered nor requeued; the batch then stays uncommitted.
func (w *NotifierKafka) Run(ctx context.Context) error {
	if w.Topic == "" {
		return errors.New("notifier-kafka: topic is required")
	}
	if w.DeadLetterTopic == "" {
		return errors.New("notifier-kafka: dead-letter topic is required")
	}
	if w.BatchSize <= 0 {
		w.BatchSize = 10
	}
	if w.BatchWait <= 0 {
		w.BatchWait = time.Second
	}

	for {
		batch, err := w.Consumer.FetchBatch(ctx, w.BatchSize, w.BatchWait)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && len(batch) == 0 {
			w.Log.Warn("kafka fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}

		if err := w.handleBatch(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (w *NotifierKafka) handleBatch(ctx context.Context, batch []kafka.Message) error {
	records := make([]model.Record, len(batch))
	for i, m := range batch {
		records[i] = kafka.ToRecord(m)
	}

	res, perr := w.Notifier.ProcessBatch(ctx, records)
	if perr != nil {
		w.Log.Warn("batch had failures",
			zap.Int("records", len(records)),
			zap.Int("failed", len(res.Failed)),
			zap.Error(perr))
	}
	if ctx.Err() != nil {
		// shutting down mid-batch: leave it uncommitted
		return ctx.Err()
	}

	requeue := w.route(res.Failed)
	if err := w.Publisher.Publish(ctx, requeue...); err != nil {
		return fmt.Errorf("requeue %d failed record(s): %w", len(requeue), err)
	}

	if err := w.Consumer.Commit(ctx, batch...); err != nil {
		// at-least-once: the batch is fetched again, duplicates are possible
		w.Log.Error("kafka commit failed", zap.Error(err))
	}

	w.Log.Debug("batch done",
		zap.Int("delivered", len(res.Delivered)),
		zap.Int("requeued", len(requeue)))
	return nil
}

// route decides where each failed record goes next.
func (w *NotifierKafka) route(failed []notifier.Failure) []kafka.Message {
	out := make([]kafka.Message, 0, len(failed))
	for _, f := range failed {
		rec := f.Record
		if errors.Is(f.Err, notifier.ErrBatchAborted) {
			// never attempted, goes back unchanged
			metrics.RequeuedTotal.WithLabelValues("retry").Inc()
			out = append(out, kafka.FromRecord(w.Topic, rec))
			continue
		}
		rec.Attempt++

		if apperr.Retryable(f.Err) && rec.Attempt <= w.MaxRedeliveries {
			metrics.RequeuedTotal.WithLabelValues("retry").Inc()
			out = append(out, kafka.FromRecord(w.Topic, rec))
			continue
		}

		metrics.RequeuedTotal.WithLabelValues("dead_letter").Inc()
		w.Log.Warn("dead-lettering record", zap.String("record_id", rec.ID), zap.Error(f.Err))
		out = append(out, kafka.FromRecord(w.DeadLetterTopic, rec,
			kafkago.Header{Key: kafka.ErrorHeader, Value: []byte(f.Err.Error())}))
	}
	return out
}
