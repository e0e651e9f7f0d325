package notifier

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jmehdipour/hookrelay/internal/apperr"
	"github.com/jmehdipour/hookrelay/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(event, payload string) model.Envelope {
	return model.Envelope{
		Headers: map[string]string{"X-Github-Event": event},
		Payload: json.RawMessage(payload),
	}
}

func TestSummarize(t *testing.T) {
	cases := []struct {
		name string
		env  model.Envelope
		want string
	}{
		{
			name: "pull request",
			env:  env("pull_request", `{"action":"opened","repository":{"full_name":"o/r"},"sender":{"login":"bob"},"pull_request":{"number":7,"title":"Add relay","html_url":"https://github.com/o/r/pull/7"}}`),
			want: "[o/r] pull_request opened by bob: #7 Add relay https://github.com/o/r/pull/7",
		},
		{
			name: "issue",
			env:  env("issues", `{"action":"closed","repository":{"full_name":"o/r"},"issue":{"number":3,"title":"Crash"}}`),
			want: "[o/r] issues closed: #3 Crash",
		},
		{
			name: "check run",
			env:  env("check_run", `{"action":"completed","repository":{"full_name":"o/r"},"check_run":{"name":"test","conclusion":"failure","html_url":"https://github.com/o/r/runs/1"}}`),
			want: "[o/r] check_run completed: test failure https://github.com/o/r/runs/1",
		},
		{
			name: "tag push",
			env:  env("push", `{"ref":"refs/tags/v1.0.0","repository":{"full_name":"o/r"}}`),
			want: "[o/r] push to v1.0.0",
		},
		{
			name: "ping",
			env:  env("ping", `{"zen":"Keep it logically awesome."}`),
			want: "ping: Keep it logically awesome.",
		},
		{
			name: "no event header",
			env:  model.Envelope{Payload: json.RawMessage(`{"ref":"main"}`)},
			want: "event to main",
		},
		{
			name: "non-object payload",
			env:  env("push", `[1, 2,  3]`),
			want: "[1,2,3]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Summarize(tc.env))
		})
	}
}

func TestSummarizeTruncates(t *testing.T) {
	long := strings.Repeat("é", 5000)
	got := Summarize(env("push", `{"head_commit":{"message":"`+long+`"}}`))

	assert.Equal(t, maxSummaryRunes, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestTextSourceRejectsMalformedRecords(t *testing.T) {
	_, err := TextRaw.Text(model.Record{Body: ""})
	assert.Equal(t, apperr.InvalidRecord, apperr.KindOf(err))

	_, err = TextEnvelope.Text(model.Record{Body: "  "})
	assert.Equal(t, apperr.InvalidRecord, apperr.KindOf(err))

	_, err = TextEnvelope.Text(model.Record{Body: "build failed"})
	assert.Equal(t, apperr.InvalidRecord, apperr.KindOf(err))

	_, err = TextEnvelope.Text(model.Record{Body: `{"headers":{}}`})
	assert.Equal(t, apperr.InvalidRecord, apperr.KindOf(err))

	text, err := TextRaw.Text(model.Record{Body: "build failed"})
	require.NoError(t, err)
	assert.Equal(t, "build failed", text)
}

func TestTextRawKeepsWhitespaceBody(t *testing.T) {
	text, err := TextRaw.Text(model.Record{Body: "  \n"})
	require.NoError(t, err)
	assert.Equal(t, "  \n", text)
}
