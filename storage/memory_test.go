package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// missing key reads as empty, not as an error
	v, err := m.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, m.Set(ctx, "k", "v"))
	v, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, m.Del(ctx, "k"))
	v, _ = m.Get(ctx, "k")
	assert.Empty(t, v)
}

func TestMemoryMSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.MSet(ctx, map[string]string{
		KeyAuthToken: "tok",
		KeySessionID: "sid",
	}))
	tok, _ := m.Get(ctx, KeyAuthToken)
	sid, _ := m.Get(ctx, KeySessionID)
	assert.Equal(t, "tok", tok)
	assert.Equal(t, "sid", sid)
}

func TestMemoryDelPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Set(ctx, HoursKey("2", time.Tuesday), `["08:00"]`))
	require.NoError(t, m.Set(ctx, HoursKey("2", time.Friday), `["07:00"]`))
	require.NoError(t, m.Set(ctx, KeyAuthToken, "tok"))

	require.NoError(t, m.DelPrefix(ctx, KeyPrefixHours))

	v, _ := m.Get(ctx, HoursKey("2", time.Tuesday))
	assert.Empty(t, v)
	v, _ = m.Get(ctx, KeyAuthToken)
	assert.Equal(t, "tok", v)
}

func TestHoursKey(t *testing.T) {
	assert.Equal(t, "itec:hours:2:2", HoursKey("2", time.Tuesday))
	assert.Equal(t, "itec:hours:14:6", HoursKey("14", time.Saturday))
}
