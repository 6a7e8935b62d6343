package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// NetworkAggregator serves the canonical operations of a single network.
type NetworkAggregator interface {
	Network() entity.NetworkConfig
	GetPortfolio(ctx context.Context, req entity.PortfolioRequest) (entity.AddressPortfolio, error)
	GetTransactions(ctx context.Context, req entity.PortfolioRequest) ([]entity.Transaction, error)
	GetTransactionStatus(ctx context.Context, hash string) (entity.TxStatusResult, error)
	GetGasTracker(ctx context.Context) (entity.GasTracker, error)
}

// AggregatorRegistry is the static network -> aggregator dispatch table.
type AggregatorRegistry interface {
	Aggregator(id entity.NetworkID) (NetworkAggregator, bool)
	Networks() []entity.NetworkConfig
}

// PortfolioFanOut runs per-network operations across many accounts at once.
type PortfolioFanOut interface {
	GetBalances(ctx context.Context, accounts []entity.AccountRef) (entity.BalanceBatch, error)
	GetTransactionHistory(ctx context.Context, accounts []entity.AccountRef) (entity.TransactionBatch, error)
}
