package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/chat"
	"github.com/jmehdipour/hookrelay/internal/model"
	"github.com/jmehdipour/hookrelay/internal/secret"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	mu    sync.Mutex
	posts []model.ChatMessage
	urls  []string
	fail  func(msg model.ChatMessage, call int) error
	calls map[string]int
}

func (f *fakeClient) Post(_ context.Context, url string, msg model.ChatMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[msg.Text]++
	f.posts = append(f.posts, msg)
	f.urls = append(f.urls, url)
	if f.fail != nil {
		return f.fail(msg, f.calls[msg.Text])
	}
	return nil
}

type staticEndpoint struct {
	url string
	err error
}

func (e staticEndpoint) URL(context.Context) (string, error) { return e.url, e.err }

func records(bodies ...string) []model.Record {
	out := make([]model.Record, len(bodies))
	for i, b := range bodies {
		out[i] = model.Record{ID: string(rune('a' + i)), Body: b}
	}
	return out
}

func TestProcessBatchDeliversEveryRecord(t *testing.T) {
	c := &fakeClient{}
	n := New(c, staticEndpoint{url: "https://chat"}, Config{Platform: "telegram", Destination: "42"}, nil)

	res, err := n.ProcessBatch(context.Background(), records("one", "two", "three"))
	require.NoError(t, err)

	assert.Len(t, res.Delivered, 3)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []model.ChatMessage{
		{Text: "one", Destination: "42"},
		{Text: "two", Destination: "42"},
		{Text: "three", Destination: "42"},
	}, c.posts)
	assert.Equal(t, []string{"https://chat", "https://chat", "https://chat"}, c.urls)
}

func TestProcessBatchRetriesUntilSuccess(t *testing.T) {
	c := &fakeClient{fail: func(_ model.ChatMessage, call int) error {
		if call <= 2 {
			return errors.New("502")
		}
		return nil
	}}
	n := New(c, staticEndpoint{url: "https://chat"}, Config{Retry: chat.Retry{MaxAttempts: 3}}, nil)

	res, err := n.ProcessBatch(context.Background(), records("flaky"))
	require.NoError(t, err)
	assert.Len(t, res.Delivered, 1)
	assert.Equal(t, 3, c.calls["flaky"])
}

func TestProcessBatchIsolatesFailures(t *testing.T) {
	c := &fakeClient{fail: func(msg model.ChatMessage, _ int) error {
		if msg.Text == "bad" {
			return errors.New("400 chat not found")
		}
		return nil
	}}
	n := New(c, staticEndpoint{url: "https://chat"}, Config{Mode: ModeIsolate}, nil)

	res, err := n.ProcessBatch(context.Background(), records("first", "bad", "", "last"))
	require.Error(t, err)

	assert.Equal(t, []string{"first", "last"}, []string{res.Delivered[0].Body, res.Delivered[1].Body})
	require.Len(t, res.Failed, 2)
	assert.Equal(t, "bad", res.Failed[0].Record.Body)
	assert.Equal(t, apperr.DeliveryFailed, apperr.KindOf(res.Failed[0].Err))
	assert.Equal(t, "", res.Failed[1].Record.Body)
	assert.Equal(t, apperr.InvalidRecord, apperr.KindOf(res.Failed[1].Err))

	assert.Equal(t, 3, c.calls["bad"], "failing record gets all attempts")
	assert.Equal(t, 1, c.calls["last"], "later records still attempted")
	assert.Contains(t, err.Error(), "record b")
	assert.Contains(t, err.Error(), "record c")
}

func TestProcessBatchAtomicStopsAtFirstFailure(t *testing.T) {
	c := &fakeClient{fail: func(msg model.ChatMessage, _ int) error {
		if msg.Text == "bad" {
			return errors.New("boom")
		}
		return nil
	}}
	n := New(c, staticEndpoint{url: "https://chat"}, Config{Mode: ModeAtomic, Concurrency: 8}, nil)

	res, err := n.ProcessBatch(context.Background(), records("first", "bad", "third", "fourth"))
	require.Error(t, err)
	assert.Equal(t, apperr.DeliveryFailed, apperr.KindOf(err))

	require.Len(t, res.Delivered, 1)
	assert.Equal(t, "first", res.Delivered[0].Body)
	require.Len(t, res.Failed, 3)
	assert.Equal(t, apperr.DeliveryFailed, apperr.KindOf(res.Failed[0].Err))
	assert.ErrorIs(t, res.Failed[1].Err, ErrBatchAborted)
	assert.ErrorIs(t, res.Failed[2].Err, ErrBatchAborted)
	assert.Zero(t, c.calls["third"])
	assert.Zero(t, c.calls["fourth"])
}

func TestProcessBatchSecretUnavailable(t *testing.T) {
	c := &fakeClient{}
	n := New(c, staticEndpoint{err: errors.New("redis: connection refused")}, Config{}, nil)

	res, err := n.ProcessBatch(context.Background(), records("x"))
	require.Error(t, err)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, apperr.Unavailable, apperr.KindOf(res.Failed[0].Err))
	assert.Empty(t, c.posts, "secret lookups are not retried and nothing is posted")
}

func TestProcessBatchConcurrent(t *testing.T) {
	var inFlight, peak atomic.Int32
	c := chatFunc(func(ctx context.Context, url string, msg model.ChatMessage) error {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	n := New(c, staticEndpoint{url: "https://chat"}, Config{Concurrency: 4}, nil)

	batch := records("a", "b", "c", "d", "e", "f", "g", "h")
	res, err := n.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, batch, res.Delivered, "result keeps input order")
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Greater(t, peak.Load(), int32(1))
}

func TestProcessBatchEnvelopeText(t *testing.T) {
	c := &fakeClient{}
	n := New(c, staticEndpoint{url: "https://chat"}, Config{Text: TextEnvelope}, nil)

	body, _ := json.Marshal(model.Envelope{
		Headers: map[string]string{"X-Github-Event": "push"},
		Payload: json.RawMessage(`{"ref":"refs/heads/main","repository":{"full_name":"osbuild/osbuild"},"sender":{"login":"alice"},"head_commit":{"message":"Fix tests\n\nlong body"},"compare":"https://github.com/osbuild/osbuild/compare/a...b"}`),
	})

	_, err := n.ProcessBatch(context.Background(), []model.Record{{ID: "1", Body: string(body)}})
	require.NoError(t, err)
	require.Len(t, c.posts, 1)
	assert.Equal(t, "[osbuild/osbuild] push to main by alice: Fix tests https://github.com/osbuild/osbuild/compare/a...b", c.posts[0].Text)

	res, err := n.ProcessBatch(context.Background(), records("build failed"))
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidRecord, apperr.KindOf(res.Failed[0].Err))
}

type chatFunc func(ctx context.Context, url string, msg model.ChatMessage) error

func (f chatFunc) Post(ctx context.Context, url string, msg model.ChatMessage) error {
	return f(ctx, url, msg)
}

func TestTelegramEndToEnd(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]any
		paths  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(b, &m)
		mu.Lock()
		bodies = append(bodies, m)
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	secrets := secret.NewCache(secret.NewDocument(secret.ProviderFunc(func(_ context.Context, name string) (string, error) {
		return `{"telegram_bot_token":"123:abc"}`, nil
	})), 0, time.Second)

	n := New(
		chat.NewHTTPClient(chat.PlatformTelegram, chat.TelegramEncoder, 1000, 0, 0),
		chat.NewTelegramEndpoint(secrets, "pozorbot#telegram_bot_token", srv.URL),
		Config{Platform: chat.PlatformTelegram, Destination: "1001"},
		nil,
	)

	res, err := n.ProcessBatch(context.Background(), []model.Record{{ID: "m1", Body: "build failed"}})
	require.NoError(t, err)
	assert.Len(t, res.Delivered, 1)

	require.Len(t, bodies, 1)
	assert.Equal(t, "build failed", bodies[0]["text"])
	assert.EqualValues(t, 1001, bodies[0]["chat_id"])
	assert.Equal(t, "/bot123:abc/sendMessage", paths[0])
}

func TestSlackAlwaysFailingEndpoint(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(
		chat.NewHTTPClient(chat.PlatformSlack, chat.SlackEncoder, 1000, 0, 0),
		staticEndpoint{url: srv.URL},
		Config{Platform: chat.PlatformSlack, Retry: chat.Retry{MaxAttempts: 3}},
		nil,
	)

	res, err := n.ProcessBatch(context.Background(), records("deploy failed"))
	require.Error(t, err)
	assert.Equal(t, apperr.DeliveryFailed, apperr.KindOf(res.Failed[0].Err))
	assert.EqualValues(t, 3, hits.Load())
}

func TestParseModeAndText(t *testing.T) {
	m, ok := ParseMode("ATOMIC")
	assert.True(t, ok)
	assert.Equal(t, ModeAtomic, m)
	_, ok = ParseMode("sometimes")
	assert.False(t, ok)

	s, ok := ParseTextSource("")
	assert.True(t, ok)
	assert.Equal(t, TextRaw, s)
	_, ok = ParseTextSource("markdown")
	assert.False(t, ok)
}
