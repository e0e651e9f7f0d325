package model

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Envelope is the queue message published by the webhook receiver.
type Envelope struct {
	Headers map[string]string `json:"headers"`
	Payload json.RawMessage   `json:"payload"`
}

// NewEnvelope flattens h (canonical keys, repeated values joined by ", ").
func NewEnvelope(h http.Header, payload json.RawMessage) Envelope {
	headers := make(map[string]string, len(h))
	for k, vs := range h {
		headers[http.CanonicalHeaderKey(k)] = strings.Join(vs, ", ")
	}
	return Envelope{Headers: headers, Payload: payload}
}

// Header looks a header up case-insensitively.
func (e Envelope) Header(name string) string {
	if v, ok := e.Headers[http.CanonicalHeaderKey(name)]; ok {
		return v
	}
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
