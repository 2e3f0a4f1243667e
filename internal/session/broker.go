// Package session caches reusable proofs of authentication (tokens, cookie
// sessions) per (endpoint, username) so providers do not log in on every
// request.
package session

import (
	"context"
	"sync"
	"time"
)

const (
	// TokenTTL bounds reuse of bearer tokens. Servers typically honour
	// them for longer.
	TokenTTL = 24 * time.Hour

	// SessionTTL bounds reuse of cookie sessions.
	SessionTTL = 30 * time.Minute
)

// Key identifies one cached artifact.
type Key struct {
	Endpoint string
	Username string
}

type entry[T any] struct {
	value    T
	issuedAt time.Time
}

// LoginFunc obtains a fresh artifact.
type LoginFunc[T any] func(ctx context.Context) (T, error)

// Broker caches artifacts of type T with a fixed TTL. Expiry is checked when
// an entry is read; nothing sweeps in the background. Concurrent logins for
// the same key are not coalesced: both succeed and the later write wins.
type Broker[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[Key]entry[T]
}

// Option configures a Broker.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewBroker creates an empty broker whose entries live for ttl.
func NewBroker[T any](ttl time.Duration, opts ...Option) *Broker[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{ttl: ttl, now: o.now, entries: make(map[Key]entry[T])}
}

// Lookup returns a cached artifact younger than the TTL. Expired entries
// are dropped.
func (b *Broker[T]) Lookup(key Key) (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	e, ok := b.entries[key]
	if !ok {
		return zero, false
	}
	if b.now().Sub(e.issuedAt) >= b.ttl {
		delete(b.entries, key)
		return zero, false
	}
	return e.value, true
}

// Store records value as issued now, replacing any previous entry.
func (b *Broker[T]) Store(key Key, value T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key] = entry[T]{value: value, issuedAt: b.now()}
}

// Invalidate drops the entry for key.
func (b *Broker[T]) Invalidate(key Key) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key)
}

// InvalidateEndpoint drops every entry for endpoint, whatever the user.
func (b *Broker[T]) InvalidateEndpoint(endpoint string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k := range b.entries {
		if k.Endpoint == endpoint {
			delete(b.entries, k)
			n++
		}
	}
	return n
}

// Len reports the number of entries, expired or not.
func (b *Broker[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Acquire returns the cached artifact for key or runs login and caches its
// result. The second return value is true when the artifact was reused.
func (b *Broker[T]) Acquire(ctx context.Context, key Key, login LoginFunc[T]) (T, bool, error) {
	if v, ok := b.Lookup(key); ok {
		return v, true, nil
	}
	v, err := login(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	b.Store(key, v)
	return v, false, nil
}
