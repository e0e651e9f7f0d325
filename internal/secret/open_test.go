package secret

import (
	"context"
	"testing"
	"time"

	"github.com/jmehdipour/hookrelay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenEnvBackend(t *testing.T) {
	t.Setenv("HOOKRELAY_SECRET_SCHUTZBOT", `{"github_secret":"abc"}`)

	c, err := Open(config.SecretsConfig{Backend: "env", Timeout: time.Second}, nil)
	require.NoError(t, err)

	v, err := c.Secret(context.Background(), "schutzbot#github_secret")
	require.NoError(t, err)
	assert.Equal(t, "abc", v)
}

func TestOpenRejectsBadBackend(t *testing.T) {
	_, err := Open(config.SecretsConfig{Backend: "redis"}, nil)
	require.Error(t, err)

	_, err = Open(config.SecretsConfig{Backend: "vault"}, nil)
	require.Error(t, err)
}
