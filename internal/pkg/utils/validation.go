package utils

import (
	"regexp"
	"strings"

	"portfolio_aggregator/internal/domain/entity"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
)

// ZeroBTCAddress is the P2PKH address of an all-zero hash160, used as the UTXO sentinel.
const ZeroBTCAddress = "1111111111111111111114oLvT2"

// ZeroTxID is the UTXO sentinel for malformed transaction ids.
const ZeroTxID = "0000000000000000000000000000000000000000000000000000000000000000"

var (
	evmHashRe  = regexp.MustCompile(`^0x[0-9a-f]{64}$`)
	utxoHashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// NormalizeAddress validates an address for the given chain kind and returns its canonical form.
func NormalizeAddress(kind entity.ChainKind, s string) (string, bool) {
	s = strings.TrimSpace(s)
	switch kind {
	case entity.KindUTXO:
		addr, err := btcutil.DecodeAddress(s, &chaincfg.MainNetParams)
		if err != nil || !addr.IsForNet(&chaincfg.MainNetParams) {
			return "", false
		}
		return addr.EncodeAddress(), true
	default:
		lower := strings.ToLower(s)
		if len(lower) != 42 || !strings.HasPrefix(lower, "0x") || !common.IsHexAddress(lower) {
			return "", false
		}
		return lower, true
	}
}

// AddressOrZero is NormalizeAddress with the chain's zero address substituted on failure.
func AddressOrZero(kind entity.ChainKind, s string) string {
	if addr, ok := NormalizeAddress(kind, s); ok {
		return addr
	}
	return ZeroAddressFor(kind)
}

// NormalizeHash validates a transaction hash for the given chain kind.
func NormalizeHash(kind entity.ChainKind, s string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	switch kind {
	case entity.KindUTXO:
		return lower, utxoHashRe.MatchString(lower)
	default:
		return lower, evmHashRe.MatchString(lower)
	}
}

// HashOrZero is NormalizeHash with the chain's zero hash substituted on failure.
func HashOrZero(kind entity.ChainKind, s string) string {
	if h, ok := NormalizeHash(kind, s); ok {
		return h
	}
	return ZeroHashFor(kind)
}

// ZeroAddressFor returns the sentinel address of a chain kind.
func ZeroAddressFor(kind entity.ChainKind) string {
	if kind == entity.KindUTXO {
		return ZeroBTCAddress
	}
	return entity.ZeroAddress
}

// ZeroHashFor returns the sentinel hash of a chain kind.
func ZeroHashFor(kind entity.ChainKind) string {
	if kind == entity.KindUTXO {
		return ZeroTxID
	}
	return entity.ZeroHash
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
