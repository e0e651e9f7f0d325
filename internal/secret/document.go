package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Document resolves names of the form "doc#field": it fetches secret "doc" from the
// inner provider, decodes it as a JSON object and returns the string field. Names
// without '#' pass through unchanged.
type Document struct {
	inner Provider
}

func NewDocument(inner Provider) *Document {
	return &Document{inner: inner}
}

func (d *Document) Secret(ctx context.Context, name string) (string, error) {
	doc, field, ok := strings.Cut(name, "#")
	if !ok {
		return d.inner.Secret(ctx, name)
	}

	raw, err := d.inner.Secret(ctx, doc)
	if err != nil {
		return "", err
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		// never include raw: it is the secret
		return "", fmt.Errorf("secret %s is not a JSON document", doc)
	}
	v, ok := fields[field].(string)
	if !ok {
		return "", fmt.Errorf("%w: %s has no string field %q", ErrNotFound, doc, field)
	}
	return v, nil
}
