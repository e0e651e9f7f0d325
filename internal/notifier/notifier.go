package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/chat"
	"github.com/jmehdipour/hookrelay/internal/metrics"
	"github.com/jmehdipour/hookrelay/internal/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mode decides what one failing record does to the rest of its batch.
type Mode string

const (
	// ModeIsolate attempts every record; failures are reported per record.
	ModeIsolate Mode = "isolate"
	// ModeAtomic stops at the first failure; the remaining records are reported failed
	// without being attempted. Records are processed sequentially in this mode.
	ModeAtomic Mode = "atomic"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeIsolate:
		return ModeIsolate, true
	case ModeAtomic:
		return ModeAtomic, true
	default:
		return ModeIsolate, false
	}
}

// ErrBatchAborted marks records skipped because an earlier record failed in atomic mode.
var ErrBatchAborted = apperr.New(apperr.Unavailable, "batch aborted by earlier failure")

type Config struct {
	Platform    string // metrics label, e.g. "telegram"
	Destination string // chat id for telegram
	Mode        Mode
	Text        TextSource
	Concurrency int
	Retry       chat.Retry
}

// Failure is one record that was not delivered.
type Failure struct {
	Record model.Record
	Err    error
}

// Result partitions a batch. Both slices keep input order.
type Result struct {
	Delivered []model.Record
	Failed    []Failure
}

type Notifier struct {
	client   chat.Client
	endpoint chat.Endpoint
	cfg      Config
	log      *zap.Logger
}

func New(client chat.Client, endpoint chat.Endpoint, cfg Config, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeIsolate
	}
	if cfg.Text == "" {
		cfg.Text = TextRaw
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = chat.DefaultMaxAttempts
	}
	return &Notifier{
		client:   client,
		endpoint: endpoint,
		cfg:      cfg,
		log:      log.With(zap.String("platform", cfg.Platform)),
	}
}

// ProcessBatch delivers records to the chat endpoint. The returned error is nil only
// when every record was delivered; otherwise it is the first failure (atomic) or all
// failures joined (isolate), and Result says which records need redelivery.
func (n *Notifier) ProcessBatch(ctx context.Context, records []model.Record) (Result, error) {
	errs := make([]error, len(records))

	if n.cfg.Mode == ModeAtomic {
		for i, rec := range records {
			if err := n.processOne(ctx, rec); err != nil {
				errs[i] = err
				for j := i + 1; j < len(records); j++ {
					errs[j] = ErrBatchAborted
				}
				break
			}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(n.cfg.Concurrency)
		for i, rec := range records {
			g.Go(func() error {
				errs[i] = n.processOne(ctx, rec)
				return nil
			})
		}
		_ = g.Wait()
	}

	var (
		res    Result
		joined []error
	)
	for i, rec := range records {
		if errs[i] == nil {
			res.Delivered = append(res.Delivered, rec)
			continue
		}
		res.Failed = append(res.Failed, Failure{Record: rec, Err: errs[i]})
		if errs[i] != ErrBatchAborted {
			joined = append(joined, fmt.Errorf("record %s: %w", rec.ID, errs[i]))
		}
	}

	if len(joined) == 0 {
		return res, nil
	}
	if n.cfg.Mode == ModeAtomic {
		return res, joined[0]
	}
	return res, errors.Join(joined...)
}

func (n *Notifier) processOne(ctx context.Context, rec model.Record) error {
	text, err := n.cfg.Text.Text(rec)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues("invalid", n.cfg.Platform).Inc()
		n.log.Warn("invalid record", zap.String("record_id", rec.ID), zap.Error(err))
		return err
	}

	url, err := n.endpoint.URL(ctx)
	if err != nil {
		metrics.DeliveriesTotal.WithLabelValues("failed", n.cfg.Platform).Inc()
		n.log.Error("resolve chat endpoint", zap.String("record_id", rec.ID), zap.Error(err))
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.Unavailable, "secret store unavailable", err)
		}
		return err
	}

	retry := n.cfg.Retry
	retry.OnAttempt = func(attempt int) {
		metrics.DeliveryAttempts.WithLabelValues(n.cfg.Platform).Inc()
		if n.cfg.Retry.OnAttempt != nil {
			n.cfg.Retry.OnAttempt(attempt)
		}
	}

	msg := model.ChatMessage{Text: text, Destination: n.cfg.Destination}
	if err := retry.Deliver(ctx, n.client, url, msg); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("failed", n.cfg.Platform).Inc()
		n.log.Error("delivery failed", zap.String("record_id", rec.ID), zap.Int("attempt", rec.Attempt), zap.Error(err))
		return err
	}

	metrics.DeliveriesTotal.WithLabelValues("sent", n.cfg.Platform).Inc()
	n.log.Info("delivered", zap.String("record_id", rec.ID))
	return nil
}
