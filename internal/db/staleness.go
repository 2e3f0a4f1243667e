package db

import (
	"context"
)

// ValidateCache reports whether backendID's cache is still fresh. A cache
// is valid while now < lastUpdated+ttl. A missing cache is reported with
// Exists false, not as an error.
func (d *DB) ValidateCache(ctx context.Context, backendID string) (*CacheValidation, error) {
	m, err := d.GetMetadata(ctx, backendID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return &CacheValidation{BackendID: backendID}, nil
	}

	now := d.now()
	expiresAt := m.ExpiresAt()
	valid := now.Before(expiresAt)
	age := now.Sub(m.LastUpdated)
	if age < 0 {
		age = 0
	}
	return &CacheValidation{
		BackendID:   backendID,
		Exists:      true,
		Valid:       valid,
		Stale:       !valid,
		LastUpdated: m.LastUpdated,
		Age:         age,
		TTL:         m.TTL,
		ExpiresAt:   expiresAt,
	}, nil
}
