package entity

import (
	"fmt"
	"strings"
)

// NetworkID identifies one of the supported networks. The set is closed: only the
// constants below are valid and anything else is rejected at startup.
type NetworkID string

const (
	Ethereum  NetworkID = "ethereum"
	BSC       NetworkID = "bsc"
	Polygon   NetworkID = "polygon"
	Arbitrum  NetworkID = "arbitrum"
	Optimism  NetworkID = "optimism"
	Base      NetworkID = "base"
	Avalanche NetworkID = "avalanche"
	Bitcoin   NetworkID = "bitcoin"
)

var allNetworkIDs = []NetworkID{Ethereum, BSC, Polygon, Arbitrum, Optimism, Base, Avalanche, Bitcoin}

// AllNetworkIDs returns every supported network in a stable order.
func AllNetworkIDs() []NetworkID {
	out := make([]NetworkID, len(allNetworkIDs))
	copy(out, allNetworkIDs)
	return out
}

// ParseNetworkID maps a user supplied network name onto the closed NetworkID set.
func ParseNetworkID(s string) (NetworkID, error) {
	candidate := NetworkID(strings.ToLower(strings.TrimSpace(s)))
	for _, id := range allNetworkIDs {
		if id == candidate {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedNetwork, s)
}

// ChainKind groups networks that share address and hash formats.
type ChainKind string

const (
	KindEVM  ChainKind = "evm"
	KindUTXO ChainKind = "utxo"
)

// Operation is one logical upstream query a source adapter can serve.
type Operation string

const (
	OpBalance      Operation = "balance"
	OpTokens       Operation = "tokens"
	OpTransactions Operation = "transactions"
	OpTxStatus     Operation = "txStatus"
	OpGasTracker   Operation = "gasTracker"
)

// AllOperations lists the operations in the order they are configured.
var AllOperations = []Operation{OpBalance, OpTokens, OpTransactions, OpTxStatus, OpGasTracker}

// ExpectsItems reports whether an empty answer should make the cascade keep looking.
func (o Operation) ExpectsItems() bool {
	return o == OpTokens || o == OpTransactions || o == OpTxStatus
}

// Source names accepted in a network's candidate lists.
const (
	SourceEtherscan    = "etherscan"
	SourceBlockscout   = "blockscout"
	SourceRPC          = "rpc"
	SourceExplorerPage = "explorer_page"
	SourceEsplora      = "esplora"
)

// IsKnownSource reports whether name is one of the Source constants.
func IsKnownSource(name string) bool {
	switch name {
	case SourceEtherscan, SourceBlockscout, SourceRPC, SourceExplorerPage, SourceEsplora:
		return true
	}
	return false
}

// NetworkConfig is the immutable per-network descriptor resolved at startup.
type NetworkConfig struct {
	ID             NetworkID
	Name           string
	ChainID        uint64
	Kind           ChainKind
	NativeSymbol   string
	NativeName     string
	NativeDecimals int32
	LogoURL        string
	// FiatSymbol is the quote asset used when asking the ticker for a price.
	FiatSymbol   string
	PriceAliases map[string]string
	// Sources holds candidate source names per operation, most preferred first.
	Sources   map[Operation][]string
	Endpoints Endpoints
}

// Endpoints collects the upstream locations a network's adapters talk to.
type Endpoints struct {
	RPCURLs           []string
	ExplorerAPIURL    string
	ExplorerAPIKey    string
	BlockscoutURL     string
	ExplorerPageURL   string
	BalanceSelector   string
	EsploraURLs       []string
	RequestsPerSecond float64
	Burst             int
}
