package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func TestBroker_ReuseWithinTTL(t *testing.T) {
	clock := newClock()
	b := NewBroker[string](TokenTTL, WithClock(clock.Now))
	key := Key{Endpoint: "http://gdb", Username: "admin"}

	logins := 0
	login := func(context.Context) (string, error) {
		logins++
		return "token-" + string(rune('0'+logins)), nil
	}

	v, reused, err := b.Acquire(context.Background(), key, login)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, "token-1", v)

	clock.Advance(TokenTTL - time.Second)
	v, reused, err = b.Acquire(context.Background(), key, login)
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Equal(t, "token-1", v)

	clock.Advance(time.Second)
	v, reused, err = b.Acquire(context.Background(), key, login)
	require.NoError(t, err)
	assert.False(t, reused)
	assert.Equal(t, "token-2", v)
	assert.Equal(t, 2, logins)
}

func TestBroker_InvalidateForcesLogin(t *testing.T) {
	b := NewBroker[string](SessionTTL)
	key := Key{Endpoint: "http://mobi", Username: "u"}
	b.Store(key, "s1")

	b.Invalidate(key)
	_, ok := b.Lookup(key)
	assert.False(t, ok)
}

func TestBroker_FailedLoginCachesNothing(t *testing.T) {
	b := NewBroker[string](SessionTTL)
	key := Key{Endpoint: "http://mobi", Username: "u"}

	_, _, err := b.Acquire(context.Background(), key, func(context.Context) (string, error) {
		return "", errors.New("denied")
	})
	require.Error(t, err)
	assert.Zero(t, b.Len())
}

func TestBroker_KeysAreIndependent(t *testing.T) {
	b := NewBroker[string](SessionTTL)
	b.Store(Key{"http://a", "u1"}, "a1")
	b.Store(Key{"http://a", "u2"}, "a2")
	b.Store(Key{"http://b", "u1"}, "b1")

	assert.Equal(t, 2, b.InvalidateEndpoint("http://a"))
	v, ok := b.Lookup(Key{"http://b", "u1"})
	assert.True(t, ok)
	assert.Equal(t, "b1", v)
}

func TestBroker_OneEntryPerKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := NewBroker[int](time.Hour)
		users := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "b", "c"}), 1, 30).Draw(t, "users")
		last := map[string]int{}
		for i, u := range users {
			b.Store(Key{Endpoint: "http://x", Username: u}, i)
			last[u] = i
		}
		if b.Len() != len(last) {
			t.Fatalf("Len = %d, want %d", b.Len(), len(last))
		}
		for u, want := range last {
			got, ok := b.Lookup(Key{Endpoint: "http://x", Username: u})
			if !ok || got != want {
				t.Fatalf("Lookup(%s) = %d,%v want %d", u, got, ok, want)
			}
		}
	})
}
