package adapter

import (
	"fmt"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/app/service"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"
	"portfolio_aggregator/internal/infrastructure/network/client"
	"portfolio_aggregator/internal/pkg/logger"

	"go.uber.org/zap"
)

// Settings carries the timeouts and paging limits shared by every network.
type Settings struct {
	AttemptTimeout      time.Duration
	AggregateTimeout    time.Duration
	TransactionsTimeout time.Duration
	HTTPTimeout         time.Duration
	DefaultShow         int
	MaxShow             int
	Stablecoins         []string
	PriceAliases        map[string]string
}

// Factory turns network descriptors into wired aggregators.
type Factory struct {
	settings    Settings
	ticker      port.TickerClient
	recorder    port.AttemptRecorder
	tokens      map[entity.NetworkID][]entity.TokenInfo
	rpcProvider *client.EVMClientProvider
	zapLogger   *zap.Logger
}

// NewFactory creates a Factory. recorder may be nil.
func NewFactory(
	settings Settings,
	ticker port.TickerClient,
	recorder port.AttemptRecorder,
	tokens map[entity.NetworkID][]entity.TokenInfo,
	rpcProvider *client.EVMClientProvider,
	zapLogger *zap.Logger,
) *Factory {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	return &Factory{
		settings:    settings,
		ticker:      ticker,
		recorder:    recorder,
		tokens:      tokens,
		rpcProvider: rpcProvider,
		zapLogger:   zapLogger,
	}
}

// Build wires one aggregator per network and collects the contract verifiers of
// networks that list an etherscan source.
func (f *Factory) Build(networks []entity.NetworkConfig) ([]port.NetworkAggregator, map[entity.NetworkID]port.ContractVerifier, error) {
	normalizer := service.NewNormalizer()
	aggregators := make([]port.NetworkAggregator, 0, len(networks))
	verifiers := make(map[entity.NetworkID]port.ContractVerifier)

	for _, network := range networks {
		sources, verifier, err := f.Sources(network)
		if err != nil {
			return nil, nil, err
		}
		if verifier != nil {
			verifiers[network.ID] = verifier
		}

		netLogger := logger.Named("aggregator." + string(network.ID))
		orchestrator := service.NewFallbackOrchestrator(network.ID, f.settings.AttemptTimeout, f.recorder, netLogger)
		prices := service.NewPriceResolver(
			f.ticker,
			network.FiatSymbol,
			f.settings.Stablecoins,
			service.MergeAliases(f.settings.PriceAliases, network.PriceAliases),
			netLogger,
		)
		aggregators = append(aggregators, service.NewNetworkAggregator(
			network,
			sources,
			orchestrator,
			prices,
			normalizer,
			service.AggregatorSettings{
				AggregateTimeout:    f.settings.AggregateTimeout,
				TransactionsTimeout: f.settings.TransactionsTimeout,
				DefaultShow:         f.settings.DefaultShow,
				MaxShow:             f.settings.MaxShow,
			},
			netLogger,
		))
	}
	return aggregators, verifiers, nil
}

// Sources instantiates the candidate adapters of every operation in configured order.
// Adapters are shared between operations; an adapter listed for an operation it
// cannot serve is a configuration error.
func (f *Factory) Sources(network entity.NetworkConfig) (map[entity.Operation][]port.SourceAdapter, port.ContractVerifier, error) {
	built := make(map[string][]port.SourceAdapter)
	var verifier port.ContractVerifier
	var http *httpclient.Client

	upstream := func() *httpclient.Client {
		if http == nil {
			http = httpclient.New(httpclient.Options{
				Timeout:           f.settings.HTTPTimeout,
				RequestsPerSecond: network.Endpoints.RequestsPerSecond,
				Burst:             network.Endpoints.Burst,
			}, f.zapLogger.With(zap.String("network", string(network.ID))))
		}
		return http
	}

	instantiate := func(name string) ([]port.SourceAdapter, error) {
		if adapters, ok := built[name]; ok {
			return adapters, nil
		}
		var adapters []port.SourceAdapter
		switch name {
		case entity.SourceEtherscan:
			if network.Endpoints.ExplorerAPIURL == "" {
				return nil, fmt.Errorf("network %s: etherscan source needs an explorer API URL", network.ID)
			}
			ether := NewEtherscanAdapter(network, upstream(), f.zapLogger)
			verifier = ether
			adapters = append(adapters, ether)
		case entity.SourceBlockscout:
			if network.Endpoints.BlockscoutURL == "" {
				return nil, fmt.Errorf("network %s: blockscout source needs a blockscout URL", network.ID)
			}
			adapters = append(adapters, NewBlockscoutAdapter(network, upstream(), f.zapLogger))
		case entity.SourceRPC:
			if len(network.Endpoints.RPCURLs) == 0 {
				return nil, fmt.Errorf("network %s: rpc source needs at least one RPC URL", network.ID)
			}
			if network.Kind != entity.KindEVM {
				return nil, fmt.Errorf("network %s: rpc source only serves EVM networks", network.ID)
			}
			adapters = append(adapters, client.NewRPCAdapter(network, f.rpcProvider, f.tokens[network.ID], logger.Named("rpc."+string(network.ID))))
		case entity.SourceExplorerPage:
			if network.Endpoints.ExplorerPageURL == "" {
				return nil, fmt.Errorf("network %s: explorer_page source needs an explorer page URL", network.ID)
			}
			adapters = append(adapters, NewExplorerPageAdapter(network, upstream(), f.zapLogger))
		case entity.SourceEsplora:
			if len(network.Endpoints.EsploraURLs) == 0 {
				return nil, fmt.Errorf("network %s: esplora source needs at least one esplora URL", network.ID)
			}
			for _, u := range network.Endpoints.EsploraURLs {
				adapters = append(adapters, NewEsploraAdapter(EsploraSourceName(u), u, upstream(), f.zapLogger))
			}
		default:
			return nil, fmt.Errorf("network %s: unknown source %q", network.ID, name)
		}
		built[name] = adapters
		return adapters, nil
	}

	out := make(map[entity.Operation][]port.SourceAdapter, len(network.Sources))
	for _, op := range entity.AllOperations {
		for _, name := range network.Sources[op] {
			adapters, err := instantiate(name)
			if err != nil {
				return nil, nil, err
			}
			for _, a := range adapters {
				if !a.Supports(op) {
					return nil, nil, fmt.Errorf("network %s: source %s cannot serve %s", network.ID, a.Name(), op)
				}
				out[op] = append(out[op], a)
			}
		}
	}
	return out, verifier, nil
}
