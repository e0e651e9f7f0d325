package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jmehdipour/hookrelay/internal/model"
)

// Client posts one chat message to an endpoint URL.
type Client interface {
	Post(ctx context.Context, url string, msg model.ChatMessage) error
}

// Encoder renders the platform-specific request body for msg.
type Encoder func(msg model.ChatMessage) ([]byte, error)

// StatusError is a non-2xx answer from the chat API.
type StatusError struct {
	Platform string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status=%d", e.Platform, e.Code)
	}
	return fmt.Sprintf("%s: status=%d body=%q", e.Platform, e.Code, e.Body)
}

type HTTPClient struct {
	platform string
	encode   Encoder
	client   *http.Client
	br       *MicroBreaker
}

func NewHTTPClient(platform string, encode Encoder, timeoutMs, failThreshold, openForMs int) *HTTPClient {
	if timeoutMs <= 0 {
		timeoutMs = 5000
	}

	if openForMs <= 0 {
		openForMs = 15000
	}

	return &HTTPClient{
		platform: platform,
		encode:   encode,
		client:   &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:       NewMicroBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

func (c *HTTPClient) Post(ctx context.Context, endpoint string, msg model.ChatMessage) error {
	if !c.br.TryAcquire() {
		return fmt.Errorf("%s: %w", c.platform, ErrBreakerOpen)
	}

	if err := c.post(ctx, endpoint, msg); err != nil {
		c.br.OnFailure()
		return err
	}

	c.br.OnSuccess()

	return nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, msg model.ChatMessage) error {
	b, err := c.encode(msg)
	if err != nil {
		return fmt.Errorf("%s: encode message: %w", c.platform, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.platform, unwrapURL(err))
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", c.platform, unwrapURL(err))
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		return &StatusError{Platform: c.platform, Code: res.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	_, _ = io.Copy(io.Discard, res.Body)

	return nil
}

// unwrapURL drops the request URL from transport errors: telegram URLs carry the bot token.
func unwrapURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
