package store

import (
	"context"
	"time"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/patrickmn/go-cache"
)

// MemoryVerificationStore keeps records in a process-local go-cache whose item
// expiration is the hard TTL.
type MemoryVerificationStore struct {
	cache *cache.Cache
	opts  Options
}

// NewMemoryVerificationStore creates an empty in-memory store.
func NewMemoryVerificationStore(opts Options) *MemoryVerificationStore {
	opts = opts.withDefaults()
	cleanup := opts.HardTTL / 4
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &MemoryVerificationStore{cache: cache.New(opts.HardTTL, cleanup), opts: opts}
}

// Get implements port.VerificationStore.
func (s *MemoryVerificationStore) Get(_ context.Context, chainID uint64, address string) (*entity.VerificationRecord, error) {
	v, ok := s.cache.Get(recordKey(chainID, address))
	if !ok {
		return nil, nil
	}
	record := v.(entity.VerificationRecord)
	if s.opts.Now().Sub(record.CheckedAt) > s.opts.MaxAge {
		return nil, nil
	}
	return &record, nil
}

// Set implements port.VerificationStore.
func (s *MemoryVerificationStore) Set(_ context.Context, chainID uint64, address string, isVerified bool, source string) error {
	record := newRecord(chainID, address, isVerified, source, s.opts.Now(), s.opts.HardTTL)
	s.cache.Set(recordKey(chainID, address), record, s.opts.HardTTL)
	return nil
}
