package entity

import "time"

// VerificationRecord caches whether a contract's source is verified on an explorer.
type VerificationRecord struct {
	ChainID    uint64    `json:"chainId"`
	Address    string    `json:"address"`
	IsVerified bool      `json:"isVerified"`
	Source     string    `json:"source"`
	CheckedAt  time.Time `json:"checkedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}
