package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/laftscreen/internal/domain"
)

// ScreeningStore keeps screening sessions in a cache so follow-up filter,
// distribution and export requests can be answered without re-uploading.
type ScreeningStore struct {
	cache domain.Cache
	ttl   time.Duration
}

// NewScreeningStore creates a store. Sessions expire after ttl.
func NewScreeningStore(c domain.Cache, ttl time.Duration) *ScreeningStore {
	return &ScreeningStore{cache: c, ttl: ttl}
}

// Save stores the screening under its id.
func (s *ScreeningStore) Save(ctx context.Context, sc *domain.Screening) error {
	data, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encoding screening %s: %w", sc.ID, err)
	}
	if err := s.cache.Set(ctx, domain.NamespaceScreenings, sc.ID, data, s.ttl); err != nil {
		return fmt.Errorf("caching screening %s: %w", sc.ID, err)
	}
	return nil
}

// Load returns the screening with the given id, or domain.ErrNotFound.
func (s *ScreeningStore) Load(ctx context.Context, id string) (*domain.Screening, error) {
	data, err := s.cache.Get(ctx, domain.NamespaceScreenings, id)
	if err != nil {
		return nil, fmt.Errorf("reading screening %s: %w", id, err)
	}
	if data == nil {
		return nil, fmt.Errorf("screening %s: %w", id, domain.ErrNotFound)
	}

	var sc domain.Screening
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decoding screening %s: %w", id, err)
	}
	return &sc, nil
}

// Delete removes the screening. Deleting an unknown id is not an error.
func (s *ScreeningStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, domain.NamespaceScreenings, id)
}
