package service

import (
	"context"
	"fmt"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"golang.org/x/sync/errgroup"
)

const (
	batchKindBalances     = "balances"
	batchKindTransactions = "transactions"
)

type fanOutImpl struct {
	registry      port.AggregatorRegistry
	maxConcurrent int
	recorder      port.BatchRecorder
	logger        port.Logger
}

// NewFanOut creates the multi-network fan-out. recorder may be nil.
func NewFanOut(registry port.AggregatorRegistry, maxConcurrent int, recorder port.BatchRecorder, logger port.Logger) port.PortfolioFanOut {
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	return &fanOutImpl{
		registry:      registry,
		maxConcurrent: maxConcurrent,
		recorder:      recorder,
		logger:        logger,
	}
}

type itemOutcome[T any] struct {
	value     T
	exception *entity.BatchException
}

// GetBalances fetches one portfolio per account concurrently. A failing item lands in
// Exceptions and never aborts the batch; ErrNotFound is returned only when no item succeeded.
func (f *fanOutImpl) GetBalances(ctx context.Context, accounts []entity.AccountRef) (entity.BalanceBatch, error) {
	outcomes := runFanOut(ctx, f, accounts, batchKindBalances, func(ctx context.Context, agg port.NetworkAggregator, acc entity.AccountRef) (entity.AddressPortfolio, error) {
		return agg.GetPortfolio(ctx, entity.PortfolioRequest{Address: acc.Address})
	})

	batch := entity.BalanceBatch{Results: []entity.AddressPortfolio{}, Exceptions: []entity.BatchException{}}
	for _, o := range outcomes {
		if o.exception != nil {
			batch.Exceptions = append(batch.Exceptions, *o.exception)
			continue
		}
		batch.Results = append(batch.Results, o.value)
	}
	if len(batch.Results) == 0 {
		return batch, fmt.Errorf("%w: address_not_found for %d account(s)", entity.ErrNotFound, len(accounts))
	}
	return batch, nil
}

// GetTransactionHistory is the transaction list counterpart of GetBalances.
func (f *fanOutImpl) GetTransactionHistory(ctx context.Context, accounts []entity.AccountRef) (entity.TransactionBatch, error) {
	outcomes := runFanOut(ctx, f, accounts, batchKindTransactions, func(ctx context.Context, agg port.NetworkAggregator, acc entity.AccountRef) (entity.AccountTransactions, error) {
		txs, err := agg.GetTransactions(ctx, entity.PortfolioRequest{Address: acc.Address})
		if err != nil {
			return entity.AccountTransactions{}, err
		}
		return entity.AccountTransactions{Address: acc.Address, Network: string(agg.Network().ID), Transactions: txs}, nil
	})

	batch := entity.TransactionBatch{Results: []entity.AccountTransactions{}, Exceptions: []entity.BatchException{}}
	for _, o := range outcomes {
		if o.exception != nil {
			batch.Exceptions = append(batch.Exceptions, *o.exception)
			continue
		}
		batch.Results = append(batch.Results, o.value)
	}
	if len(batch.Results) == 0 {
		return batch, fmt.Errorf("%w: address_not_found for %d account(s)", entity.ErrNotFound, len(accounts))
	}
	return batch, nil
}

// runFanOut dispatches every account to its network's aggregator with bounded
// concurrency. Outcomes keep the input order.
func runFanOut[T any](
	ctx context.Context,
	f *fanOutImpl,
	accounts []entity.AccountRef,
	kind string,
	call func(context.Context, port.NetworkAggregator, entity.AccountRef) (T, error),
) []itemOutcome[T] {
	outcomes := make([]itemOutcome[T], len(accounts))

	var g errgroup.Group
	g.SetLimit(f.maxConcurrent)
	for i, acc := range accounts {
		g.Go(func() error {
			value, err := dispatch(f.registry, acc, func(agg port.NetworkAggregator) (T, error) {
				return call(ctx, agg, acc)
			})
			if err != nil {
				outcomes[i].exception = &entity.BatchException{Network: acc.Network, Address: acc.Address, Message: err.Error()}
				f.record(kind, "exception")
				f.logger.Warn("Fan-out item failed", "kind", kind, "network", acc.Network, "address", acc.Address, "error", err)
				return nil
			}
			outcomes[i].value = value
			f.record(kind, "result")
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// dispatch routes acc through the static registry. A panicking aggregator is turned
// into an item error so one network cannot take the batch down.
func dispatch[T any](registry port.AggregatorRegistry, acc entity.AccountRef, call func(port.NetworkAggregator) (T, error)) (value T, err error) {
	id, err := entity.ParseNetworkID(acc.Network)
	if err != nil {
		return value, err
	}
	agg, ok := registry.Aggregator(id)
	if !ok {
		return value, fmt.Errorf("%w: %s is not enabled", entity.ErrUnsupportedNetwork, id)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregator for %s panicked: %v", id, r)
		}
	}()
	return call(agg)
}

func (f *fanOutImpl) record(kind, outcome string) {
	if f.recorder != nil {
		f.recorder.RecordBatchItem(kind, outcome)
	}
}
