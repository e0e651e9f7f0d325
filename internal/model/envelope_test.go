package model

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelopeFlattensHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("x-github-event", "push")
	h.Add("Accept", "text/plain")
	h.Add("Accept", "application/json")

	env := NewEnvelope(h, json.RawMessage(`{"ref":"main"}`))

	assert.Equal(t, map[string]string{
		"X-Github-Event": "push",
		"Accept":         "text/plain, application/json",
	}, env.Headers)
	assert.Equal(t, "push", env.Header("X-GitHub-Event"))
	assert.Equal(t, "", env.Header("X-Missing"))
}

func TestEnvelopeWireFormat(t *testing.T) {
	env := Envelope{
		Headers: map[string]string{"X-Github-Event": "ping"},
		Payload: json.RawMessage(`{"zen":"Keep it logically awesome."}`),
	}

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{"headers":{"X-Github-Event":"ping"},"payload":{"zen":"Keep it logically awesome."}}`, string(b))
}

func TestEnvelopeHeaderFallsBackToCaseInsensitiveScan(t *testing.T) {
	env := Envelope{Headers: map[string]string{"x-github-event": "issues"}}

	assert.Equal(t, "issues", env.Header("X-GitHub-Event"))
}
