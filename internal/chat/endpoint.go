package chat

import (
	"context"

	"github.com/jmehdipour/hookrelay/internal/secret"
)

// Endpoint resolves the URL messages are posted to.
type Endpoint interface {
	URL(ctx context.Context) (string, error)
}

// SecretEndpoint builds the URL from a secret. For slack the secret is the URL itself,
// for telegram it is the bot token.
type SecretEndpoint struct {
	secrets secret.Provider
	name    string
	build   func(value string) string
}

func NewTelegramEndpoint(secrets secret.Provider, tokenName, apiBase string) *SecretEndpoint {
	return &SecretEndpoint{
		secrets: secrets,
		name:    tokenName,
		build:   func(token string) string { return TelegramURL(apiBase, token) },
	}
}

func NewSlackEndpoint(secrets secret.Provider, urlName string) *SecretEndpoint {
	return &SecretEndpoint{
		secrets: secrets,
		name:    urlName,
		build:   func(u string) string { return u },
	}
}

func (e *SecretEndpoint) URL(ctx context.Context) (string, error) {
	v, err := e.secrets.Secret(ctx, e.name)
	if err != nil {
		return "", err
	}
	return e.build(v), nil
}
