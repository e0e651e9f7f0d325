package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/model"
	"github.com/jmehdipour/hookrelay/internal/secret"
	"go.uber.org/zap"
)

var (
	ErrMalformedSignature = apperr.New(apperr.BadRequest, "missing or malformed signature")
	ErrInvalidSignature   = apperr.New(apperr.BadRequest, "invalid signature")
	ErrInvalidPayload     = apperr.New(apperr.BadRequest, "invalid payload")
)

// Queue is the producer side of the event queue.
type Queue interface {
	// Enqueue stores body as one message and returns the message id.
	Enqueue(ctx context.Context, body []byte) (string, error)
}

// Request is an inbound webhook with its body exactly as received.
type Request struct {
	Header http.Header
	Body   []byte
}

// Receiver authenticates webhooks and forwards them to the queue as envelopes.
type Receiver struct {
	secrets    secret.Provider
	secretName string
	queue      Queue
	log        *zap.Logger
}

// New constructs the receiver. secrets should be the process secret cache.
func New(secrets secret.Provider, secretName string, queue Queue, log *zap.Logger) *Receiver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Receiver{
		secrets:    secrets,
		secretName: secretName,
		queue:      queue,
		log:        log,
	}
}

// Handle verifies req and enqueues its envelope. It returns the queue message id,
// or an *apperr.Error of kind BadRequest, TooLarge or Unavailable. Nothing is enqueued unless
// the signature verified.
func (r *Receiver) Handle(ctx context.Context, req Request) (string, error) {
	sig := req.Header.Get(SignatureHeader)
	if !WellFormed(sig) {
		return "", ErrMalformedSignature
	}

	key, err := r.secrets.Secret(ctx, r.secretName)
	if err != nil {
		r.log.Error("webhook secret lookup failed", zap.Error(err))
		return "", apperr.Wrap(apperr.Unavailable, "secret store unavailable", err)
	}

	if !Verify(key, req.Body, sig) {
		return "", ErrInvalidSignature
	}

	payload, err := extractPayload(req.Header.Get("Content-Type"), req.Body)
	if err != nil {
		r.log.Debug("webhook payload rejected", zap.Error(err))
		return "", ErrInvalidPayload
	}

	body, err := json.Marshal(model.NewEnvelope(req.Header, payload))
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}

	id, err := r.queue.Enqueue(ctx, body)
	if apperr.KindOf(err) == apperr.TooLarge {
		r.log.Warn("webhook too large for the queue", zap.Int("bytes", len(body)))
		return "", err
	}
	if err != nil {
		r.log.Error("enqueue failed", zap.Error(err))
		return "", apperr.Wrap(apperr.Unavailable, "queue unavailable", err)
	}

	r.log.Info("webhook enqueued",
		zap.String("message_id", id),
		zap.String("event", req.Header.Get("X-GitHub-Event")),
		zap.String("delivery", req.Header.Get("X-GitHub-Delivery")),
	)
	return id, nil
}

// extractPayload returns the JSON payload: the "payload" form field for form-encoded
// deliveries, the body itself otherwise.
func extractPayload(contentType string, body []byte) (json.RawMessage, error) {
	raw := body
	if mt, _, _ := mime.ParseMediaType(contentType); mt == "application/x-www-form-urlencoded" {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		if !form.Has("payload") {
			return nil, fmt.Errorf("form field payload is missing")
		}
		raw = []byte(form.Get("payload"))
	}

	raw = bytes.TrimSpace(raw)
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
