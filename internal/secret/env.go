package secret

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore reads secrets from HOOKRELAY_SECRET_<NAME>, where NAME is upper-cased
// with every non-alphanumeric character turned into '_'.
type EnvStore struct {
	Prefix string
	lookup func(string) (string, bool)
}

func NewEnvStore() *EnvStore {
	return &EnvStore{Prefix: "HOOKRELAY_SECRET_", lookup: os.LookupEnv}
}

func (s *EnvStore) Var(name string) string {
	return s.Prefix + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

func (s *EnvStore) Secret(_ context.Context, name string) (string, error) {
	v, ok := s.lookup(s.Var(name))
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v, nil
}
