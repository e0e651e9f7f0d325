// Package secret resolves named secrets (webhook shared secret, bot token, chat
// webhook URL) from a managed store and caches them for the process.
package secret

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("secret not found")

// Provider returns the value of a named secret.
type Provider interface {
	Secret(ctx context.Context, name string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, name string) (string, error)

func (f ProviderFunc) Secret(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}
