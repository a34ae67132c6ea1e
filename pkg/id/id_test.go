package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Not parallel: NewAt with another timestamp would reset the monotonic
// entropy between two calls.
func TestNewIsMonotonic(t *testing.T) {
	prev := New()
	for i := 0; i < 1000; i++ {
		next := New()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestTimeRoundTrip(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	got, err := Time(NewAt(at))
	require.NoError(t, err)
	assert.True(t, got.Equal(at))

	_, err = Time("not-a-ulid")
	assert.Error(t, err)
}

func TestNewAtZeroUsesNow(t *testing.T) {
	t.Parallel()

	got, err := Time(NewAt(time.Time{}))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got, time.Minute)
}
