package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// VerificationStore persists contract verification lookups.
type VerificationStore interface {
	// Get returns nil without error when no record exists or the record is older than
	// the store's max-age.
	Get(ctx context.Context, chainID uint64, address string) (*entity.VerificationRecord, error)
	// Set upserts the record and refreshes both of its timestamps.
	Set(ctx context.Context, chainID uint64, address string, isVerified bool, source string) error
}
