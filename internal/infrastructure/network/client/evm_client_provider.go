package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/ethclient"
)

const defaultConnectionTimeout = 10 * time.Second

// EVMClientProvider dials one ethclient per network and caches it. RPC URLs are
// tried in configured order until one dials.
type EVMClientProvider struct {
	clients           map[entity.NetworkID]*ethclient.Client
	mu                sync.Mutex
	logger            port.Logger
	connectionTimeout time.Duration
}

// NewEVMClientProvider creates a provider. A non-positive connectionTimeout uses the default.
func NewEVMClientProvider(connectionTimeout time.Duration, logger port.Logger) *EVMClientProvider {
	if connectionTimeout <= 0 {
		connectionTimeout = defaultConnectionTimeout
	}
	return &EVMClientProvider{
		clients:           make(map[entity.NetworkID]*ethclient.Client),
		logger:            logger,
		connectionTimeout: connectionTimeout,
	}
}

// GetClient returns the cached client for network, dialing it on first use.
func (p *EVMClientProvider) GetClient(ctx context.Context, network entity.NetworkConfig) (*ethclient.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if client, ok := p.clients[network.ID]; ok {
		return client, nil
	}
	if len(network.Endpoints.RPCURLs) == 0 {
		return nil, fmt.Errorf("no RPC URL configured for %s", network.ID)
	}

	var lastErr error
	for _, rpcURL := range network.Endpoints.RPCURLs {
		dialCtx, cancel := context.WithTimeout(ctx, p.connectionTimeout)
		client, err := ethclient.DialContext(dialCtx, rpcURL)
		cancel()
		if err == nil {
			p.clients[network.ID] = client
			p.logger.Info("Connected EVM client", "network", network.ID, "rpc", rpcURL)
			return client, nil
		}
		p.logger.Warn("Failed to dial RPC", "network", network.ID, "rpc", rpcURL, "error", err)
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for network %s: %w", network.ID, lastErr)
}

// Close closes every cached client.
func (p *EVMClientProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, client := range p.clients {
		client.Close()
		delete(p.clients, id)
	}
}
