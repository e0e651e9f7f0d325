package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/metrics"
	"github.com/jmehdipour/hookrelay/internal/receiver"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// WebhookReceiver is satisfied by *receiver.Receiver.
type WebhookReceiver interface {
	Handle(ctx context.Context, req receiver.Request) (string, error)
}

func webhookHandler(recv WebhookReceiver, maxBody int64, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()

		// raw bytes first: the signature covers exactly what was sent
		body, err := readBody(c.Response(), r, maxBody)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
				return c.String(http.StatusRequestEntityTooLarge, "payload too large")
			}
			metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
			return c.String(http.StatusBadRequest, "unreadable body")
		}

		id, err := recv.Handle(r.Context(), receiver.Request{Header: r.Header, Body: body})
		if err != nil {
			status := apperr.HTTPStatus(err)
			switch status {
			case http.StatusBadRequest:
				metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
				return c.String(status, apperr.Message(err))
			case http.StatusRequestEntityTooLarge:
				metrics.WebhooksTotal.WithLabelValues("rejected").Inc()
				return c.String(status, "payload too large")
			case http.StatusServiceUnavailable:
				metrics.WebhooksTotal.WithLabelValues("unavailable").Inc()
				return c.String(status, "service unavailable")
			default:
				logger.Error("webhook failed", zap.Error(err))
				metrics.WebhooksTotal.WithLabelValues("error").Inc()
				return c.String(http.StatusInternalServerError, "internal error")
			}
		}

		metrics.WebhooksTotal.WithLabelValues("enqueued").Inc()
		return c.String(http.StatusOK, "OK (ID: "+id+")")
	}
}

func readBody(w http.ResponseWriter, r *http.Request, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r.Body)
	}
	return io.ReadAll(http.MaxBytesReader(w, r.Body, max))
}
