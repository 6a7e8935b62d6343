package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// AggregatorSettings bounds the latency of one network aggregator.
type AggregatorSettings struct {
	// AggregateTimeout caps a whole portfolio fetch.
	AggregateTimeout time.Duration
	// TransactionsTimeout caps the transaction list sub-fetch; it should be shorter.
	TransactionsTimeout time.Duration
	DefaultShow         int
	MaxShow             int
	PriceConcurrency    int
}

type networkAggregatorImpl struct {
	network      entity.NetworkConfig
	sources      map[entity.Operation][]port.SourceAdapter
	orchestrator *FallbackOrchestrator
	prices       port.PriceResolver
	normalizer   *Normalizer
	settings     AggregatorSettings
	logger       port.Logger
}

// NewNetworkAggregator wires one network's cascades, price resolver and normalizer.
// sources holds the ordered candidates per operation.
func NewNetworkAggregator(
	network entity.NetworkConfig,
	sources map[entity.Operation][]port.SourceAdapter,
	orchestrator *FallbackOrchestrator,
	prices port.PriceResolver,
	normalizer *Normalizer,
	settings AggregatorSettings,
	logger port.Logger,
) port.NetworkAggregator {
	if settings.DefaultShow <= 0 {
		settings.DefaultShow = 25
	}
	if settings.MaxShow <= 0 {
		settings.MaxShow = 100
	}
	if settings.PriceConcurrency <= 0 {
		settings.PriceConcurrency = 8
	}
	return &networkAggregatorImpl{
		network:      network,
		sources:      sources,
		orchestrator: orchestrator,
		prices:       prices,
		normalizer:   normalizer,
		settings:     settings,
		logger:       logger,
	}
}

func (a *networkAggregatorImpl) Network() entity.NetworkConfig {
	return a.network
}

// GetPortfolio fetches balance, native price, tokens and transactions concurrently and
// assembles the canonical record. Sub-fetch failures degrade the matching field only.
// When every sub-fetch failed the default record is returned with ErrAllSourcesFailed.
func (a *networkAggregatorImpl) GetPortfolio(ctx context.Context, req entity.PortfolioRequest) (entity.AddressPortfolio, error) {
	address, ok := utils.NormalizeAddress(a.network.Kind, req.Address)
	if !ok {
		a.logger.Warn("Malformed address, returning default portfolio", "network", a.network.ID, "address", req.Address)
		return a.normalizer.DefaultPortfolio(a.network, req.Address), nil
	}

	ctx, cancel := a.withTimeout(ctx, a.settings.AggregateTimeout)
	defer cancel()

	params := a.fetchParams(address, req)

	var (
		balanceRes, tokensRes, txRes Resolution
		nativePrice                  decimal.Decimal
		g                            errgroup.Group
	)
	g.Go(func() error {
		balanceRes = a.orchestrator.Resolve(ctx, entity.OpBalance, params, a.sources[entity.OpBalance])
		return nil
	})
	g.Go(func() error {
		nativePrice = a.prices.ResolvePrice(ctx, a.network.NativeSymbol)
		return nil
	})
	g.Go(func() error {
		tokensRes = a.orchestrator.Resolve(ctx, entity.OpTokens, params, a.sources[entity.OpTokens])
		return nil
	})
	g.Go(func() error {
		txCtx, txCancel := a.withTimeout(ctx, a.settings.TransactionsTimeout)
		defer txCancel()
		txRes = a.orchestrator.Resolve(txCtx, entity.OpTransactions, params, a.sources[entity.OpTransactions])
		return nil
	})
	_ = g.Wait()

	tokenPrices := a.resolveTokenPrices(ctx, tokensRes.Payload.Tokens)

	native := a.normalizer.NativeHolding(a.network, balanceRes.Payload.Balance, nativePrice)
	tokens := a.normalizer.NormalizeTokens(a.network, tokensRes.Payload.Tokens, tokenPrices)

	var txs []entity.Transaction
	if txRes.Exhausted {
		txs = []entity.Transaction{a.normalizer.ErrorTransaction(a.network, address)}
	} else {
		txs = a.normalizer.NormalizeTransactions(a.network, txRes.Payload.Transactions, address, nativePrice)
	}

	allFailed := allExhausted(balanceRes, tokensRes, txRes)
	portfolio := a.normalizer.Portfolio(a.network, address, native, tokens, txs, allFailed)
	if err := a.normalizer.Validate(portfolio); err != nil {
		a.logger.Error("Assembled portfolio failed validation, returning default", "network", a.network.ID, "address", address, "error", err)
		portfolio = a.normalizer.DefaultPortfolio(a.network, address)
	}

	a.logger.Debug("Portfolio assembled",
		"network", a.network.ID,
		"address", address,
		"balanceSource", balanceRes.Source,
		"tokensSource", tokensRes.Source,
		"transactionsSource", txRes.Source,
		"tokens", portfolio.TokenHoldings.Total,
		"transactions", len(portfolio.Transactions))

	if allFailed {
		return portfolio, fmt.Errorf("%w: %s %s", entity.ErrAllSourcesFailed, a.network.ID, address)
	}
	return portfolio, nil
}

// GetTransactions fetches only the transaction list. On failure the sentinel error
// row is returned together with ErrAllSourcesFailed.
func (a *networkAggregatorImpl) GetTransactions(ctx context.Context, req entity.PortfolioRequest) ([]entity.Transaction, error) {
	address, ok := utils.NormalizeAddress(a.network.Kind, req.Address)
	if !ok {
		return nil, fmt.Errorf("%w: malformed %s address %q", entity.ErrValidation, a.network.ID, req.Address)
	}

	ctx, cancel := a.withTimeout(ctx, a.settings.AggregateTimeout)
	defer cancel()

	var (
		txRes       Resolution
		nativePrice decimal.Decimal
		g           errgroup.Group
	)
	g.Go(func() error {
		txCtx, txCancel := a.withTimeout(ctx, a.settings.TransactionsTimeout)
		defer txCancel()
		txRes = a.orchestrator.Resolve(txCtx, entity.OpTransactions, a.fetchParams(address, req), a.sources[entity.OpTransactions])
		return nil
	})
	g.Go(func() error {
		nativePrice = a.prices.ResolvePrice(ctx, a.network.NativeSymbol)
		return nil
	})
	_ = g.Wait()

	if txRes.Exhausted {
		return []entity.Transaction{a.normalizer.ErrorTransaction(a.network, address)},
			fmt.Errorf("%w: %s transactions for %s", entity.ErrAllSourcesFailed, a.network.ID, address)
	}
	return a.normalizer.NormalizeTransactions(a.network, txRes.Payload.Transactions, address, nativePrice), nil
}

// GetTransactionStatus looks a hash up across the txStatus cascade.
func (a *networkAggregatorImpl) GetTransactionStatus(ctx context.Context, hash string) (entity.TxStatusResult, error) {
	normalized, ok := utils.NormalizeHash(a.network.Kind, hash)
	if !ok {
		return entity.TxStatusResult{}, fmt.Errorf("%w: malformed %s transaction hash %q", entity.ErrValidation, a.network.ID, hash)
	}

	ctx, cancel := a.withTimeout(ctx, a.settings.AggregateTimeout)
	defer cancel()

	res := a.orchestrator.Resolve(ctx, entity.OpTxStatus, entity.FetchParams{Hash: normalized}, a.sources[entity.OpTxStatus])
	if res.Exhausted {
		return entity.TxStatusResult{}, fmt.Errorf("%w: %s tx %s", entity.ErrAllSourcesFailed, a.network.ID, normalized)
	}
	if res.Payload.TxStatus == nil || !res.Payload.TxStatus.Found {
		return entity.TxStatusResult{}, fmt.Errorf("%w: %s tx %s", entity.ErrNotFound, a.network.ID, normalized)
	}
	return a.normalizer.NormalizeTxStatus(a.network, normalized, res.Payload.TxStatus, res.Source), nil
}

// GetGasTracker returns the current gas tiers.
func (a *networkAggregatorImpl) GetGasTracker(ctx context.Context) (entity.GasTracker, error) {
	candidates := a.sources[entity.OpGasTracker]
	if len(candidates) == 0 {
		return entity.GasTracker{}, fmt.Errorf("%w: %s has no gas tracker", entity.ErrUnsupportedOperation, a.network.ID)
	}

	ctx, cancel := a.withTimeout(ctx, a.settings.AggregateTimeout)
	defer cancel()

	res := a.orchestrator.Resolve(ctx, entity.OpGasTracker, entity.FetchParams{}, candidates)
	if res.Exhausted {
		return a.normalizer.NormalizeGas(a.network, nil, ""), fmt.Errorf("%w: %s gas tracker", entity.ErrAllSourcesFailed, a.network.ID)
	}
	return a.normalizer.NormalizeGas(a.network, res.Payload.Gas, res.Source), nil
}

func (a *networkAggregatorImpl) resolveTokenPrices(ctx context.Context, tokens []entity.RawToken) map[string]decimal.Decimal {
	symbols := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if s := strings.ToUpper(strings.TrimSpace(t.Symbol)); s != "" {
			symbols[s] = struct{}{}
		}
	}

	prices := make(map[string]decimal.Decimal, len(symbols))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(a.settings.PriceConcurrency)
	for symbol := range symbols {
		g.Go(func() error {
			if price, ok := a.prices.Lookup(ctx, symbol); ok {
				mu.Lock()
				prices[symbol] = price
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return prices
}

func (a *networkAggregatorImpl) fetchParams(address string, req entity.PortfolioRequest) entity.FetchParams {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	show := req.Show
	if show <= 0 {
		show = a.settings.DefaultShow
	}
	if show > a.settings.MaxShow {
		show = a.settings.MaxShow
	}
	return entity.FetchParams{Address: address, Page: page, Show: show}
}

func (a *networkAggregatorImpl) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
