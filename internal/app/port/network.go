package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// SourceAdapter performs exactly one upstream call for one network and one provider.
// It never falls back to another provider; that is the orchestrator's job.
type SourceAdapter interface {
	// Name identifies the provider, e.g. "etherscan" or "rpc".
	Name() string
	// Supports reports whether Fetch can serve op.
	Supports(op entity.Operation) bool
	// Fetch returns a provider-shaped payload or an error wrapping entity.ErrUpstream
	// or entity.ErrDecode. An empty collection is a valid result.
	Fetch(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error)
}

// ContractVerifier asks an explorer whether a contract's source code is verified.
type ContractVerifier interface {
	Name() string
	IsContractVerified(ctx context.Context, contract string) (bool, error)
}

// NetworkDefinitionProvider resolves static network descriptors.
type NetworkDefinitionProvider interface {
	GetAllNetworkDefinitions() []entity.NetworkConfig
	GetNetworkDefinition(id entity.NetworkID) (entity.NetworkConfig, bool)
}
