package util

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDIsMonotonicWithinOneMillisecond(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)

	prev := NewIDAt(at)
	for i := 0; i < 100; i++ {
		next := NewIDAt(at)
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestNewIDParses(t *testing.T) {
	id, err := ulid.Parse(NewID())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ulid.Time(id.Time()), time.Minute)
}
