// Package store holds the VerificationStore implementations.
package store

import (
	"strconv"
	"strings"
	"time"

	"portfolio_aggregator/internal/domain/entity"
)

// Default ages of a verification record.
const (
	DefaultMaxAge  = 7 * 24 * time.Hour
	DefaultHardTTL = 30 * 24 * time.Hour
)

// Options bounds the age of stored records. Records older than MaxAge read as absent;
// records older than HardTTL are removed.
type Options struct {
	MaxAge  time.Duration
	HardTTL time.Duration
	// Now is used in tests; nil means time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	if o.HardTTL <= 0 {
		o.HardTTL = DefaultHardTTL
	}
	if o.HardTTL < o.MaxAge {
		o.HardTTL = o.MaxAge
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func recordKey(chainID uint64, address string) string {
	return strconv.FormatUint(chainID, 10) + ":" + strings.ToLower(address)
}

func newRecord(chainID uint64, address string, isVerified bool, source string, now time.Time, hardTTL time.Duration) entity.VerificationRecord {
	now = now.UTC()
	return entity.VerificationRecord{
		ChainID:    chainID,
		Address:    strings.ToLower(address),
		IsVerified: isVerified,
		Source:     source,
		CheckedAt:  now,
		ExpiresAt:  now.Add(hardTTL),
	}
}
