package networkdefinition

import (
	"fmt"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/configloader"
)

const etherscanV2 = "https://api.etherscan.io/v2/api"

// evmSources is the default cascade of EVM networks that have a Blockscout instance.
func evmSources() map[entity.Operation][]string {
	return map[entity.Operation][]string{
		entity.OpBalance:      {entity.SourceEtherscan, entity.SourceBlockscout, entity.SourceRPC, entity.SourceExplorerPage},
		entity.OpTokens:       {entity.SourceEtherscan, entity.SourceBlockscout, entity.SourceRPC},
		entity.OpTransactions: {entity.SourceEtherscan, entity.SourceBlockscout},
		entity.OpTxStatus:     {entity.SourceEtherscan, entity.SourceBlockscout, entity.SourceRPC},
		entity.OpGasTracker:   {entity.SourceEtherscan, entity.SourceRPC},
	}
}

// evmSourcesNoBlockscout is evmSources minus blockscout.
func evmSourcesNoBlockscout() map[entity.Operation][]string {
	out := evmSources()
	for op, names := range out {
		kept := names[:0]
		for _, n := range names {
			if n != entity.SourceBlockscout {
				kept = append(kept, n)
			}
		}
		out[op] = kept
	}
	return out
}

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkConfig{
		ID:             entity.Ethereum,
		Name:           "Ethereum Mainnet",
		ChainID:        1,
		Kind:           entity.KindEVM,
		NativeSymbol:   "ETH",
		NativeName:     "Ether",
		NativeDecimals: 18,
		LogoURL:        "https://assets.coingecko.com/coins/images/279/small/ethereum.png",
		FiatSymbol:     "USDT",
		Sources:        evmSources(),
		Endpoints: entity.Endpoints{
			RPCURLs:           []string{"https://ethereum-rpc.publicnode.com", "https://rpc.ankr.com/eth"},
			ExplorerAPIURL:    etherscanV2,
			BlockscoutURL:     "https://eth.blockscout.com",
			ExplorerPageURL:   "https://etherscan.io",
			RequestsPerSecond: 4,
			Burst:             2,
		},
	}
	BSC = entity.NetworkConfig{
		ID:             entity.BSC,
		Name:           "BNB Smart Chain",
		ChainID:        56,
		Kind:           entity.KindEVM,
		NativeSymbol:   "BNB",
		NativeName:     "BNB",
		NativeDecimals: 18,
		LogoURL:        "https://assets.coingecko.com/coins/images/825/small/bnb-icon2_2x.png",
		FiatSymbol:     "USDT",
		Sources:        evmSourcesNoBlockscout(),
		Endpoints: entity.Endpoints{
			RPCURLs:           []string{"https://1rpc.io/bnb", "https://bsc-dataseed2.binance.org/", "https://bsc.publicnode.com"},
			ExplorerAPIURL:    etherscanV2,
			ExplorerPageURL:   "https://bscscan.com",
			RequestsPerSecond: 4,
			Burst:             2,
		},
	}
	Polygon = entity.NetworkConfig{
		ID:             entity.Polygon,
		Name:           "Polygon PoS",
		ChainID:        137,
		Kind:           entity.KindEVM,
		NativeSymbol:   "POL",
		NativeName:     "Polygon Ecosystem Token",
		NativeDecimals: 18,
		LogoURL:        "https://assets.coingecko.com/coins/images/32440/small/polygon.png",
		FiatSymbol:     "USDT",
		// MATIC was migrated 1:1 to POL; the ticker only quotes POL.
		PriceAliases:   map[string]string{"MATIC": "POL", "WMATIC": "POL", "WPOL": "POL", "STMATIC": "POL"},
		Sources:        evmSources(),
		Endpoints: entity.Endpoints{
			RPCURLs:           []string{"https://polygon-rpc.com/", "https://polygon.publicnode.com"},
			ExplorerAPIURL:    etherscanV2,
			BlockscoutURL:     "https://polygon.blockscout.com",
			ExplorerPageURL:   "https://polygonscan.com",
			RequestsPerSecond: 4,
			Burst:             2,
		},
	}
	Arbitrum = entity.NetworkConfig{
		ID:             entity.Arbitrum,
		Name:           "Arbitrum One",
		ChainID:        42161,
		Kind:           entity.KindEVM,
		NativeSymbol:   "ETH",
		NativeName:     "Ether",
		NativeDecimals: 18,
		LogoURL:        "https://assets.coingecko.com/coins/images/279/small/ethereum.png",
		FiatSymbol:     "USDT",
		Sources:        evmSources(),
		Endpoints: entity.Endpoints{
			RPCURLs:           []string{"https://arb1.arbitrum.io/rpc", "https://arbitrum.publicnode.com"},
			ExplorerAPIURL:    etherscanV2,
			BlockscoutURL:     "https://arbitrum.blockscout.com",
			ExplorerPageURL:   "https://arbiscan.io",
			RequestsPerSecond: 4,
			Burst:             2,
		},
	}
	Optimism = entity.NetworkConfig{
		ID:             entity.Optimism,
		Name:           "OP Mainnet",
		ChainID:        10,
		Kind:           entity.KindEVM,
		NativeSymbol:   "ETH",
		NativeName:     "Ether",
		NativeDecimals: 18,
		LogoURL:        "https://assets.coingecko.com/coins/images/279/small/ethereum.png",
		FiatSymbol:     "USDT",
		Sources:        evmSources(),
		Endpoints: entity.Endpoints{
			RPCURLs:           []string{"https://optimism.publicnode.com", "https://rpc.ankr.com/optimism"},
			ExplorerAPIURL:    etherscanV2,
			BlockscoutURL:     "https://optimism.blockscout.com",
			ExplorerPageURL:   "https://optimistic.etherscan.io",
			RequestsPerSecond: 4,
			Burst:             2,
		},
	}
	Base = entity.NetworkConfig{
		ID:             entity.Base,
		Name:           "Base Mainnet",
		ChainID:        8453,
		Kind:           entity.KindEVM,
		NativeSymbol:   "ETH",
		NativeName:     "Ether",
		NativeDecimals: 18,
		LogoURL:        "https://assets.coingecko.com/coins/images/279/small/ethereum.png",
		FiatSymbol:     "USDT",
		Sources:        evmSources(),
		Endpoints: entity.Endpoints{
			RPCURLs:           []string{"https://1rpc.io/base", "https://base.publicnode.com"},
			ExplorerAPIURL:    etherscanV2,
			BlockscoutURL:     "https://base.blockscout.com",
			ExplorerPageURL:   "https://basescan.org",
			RequestsPerSecond: 4,
			Burst:             2,
		},
	}
	Avalanche = entity.NetworkConfig{
		ID:             entity.Avalanche,
		Name:           "Avalanche C-Chain",
		ChainID:        43114,
		Kind:           entity.KindEVM,
		NativeSymbol:   "AVAX",
		NativeName:     "Avalanche",
		NativeDecimals: 18,
		LogoURL:        "https://assets.coingecko.com/coins/images/12559/small/Avalanche_Circle_RedWhite_Trans.png",
		FiatSymbol:     "USDT",
		Sources:        evmSourcesNoBlockscout(),
		Endpoints: entity.Endpoints{
			RPCURLs:           []string{"https://api.avax.network/ext/bc/C/rpc", "https://avalanche.public-rpc.com"},
			ExplorerAPIURL:    etherscanV2,
			ExplorerPageURL:   "https://snowscan.xyz",
			RequestsPerSecond: 4,
			Burst:             2,
		},
	}
	Bitcoin = entity.NetworkConfig{
		ID:             entity.Bitcoin,
		Name:           "Bitcoin",
		Kind:           entity.KindUTXO,
		NativeSymbol:   "BTC",
		NativeName:     "Bitcoin",
		NativeDecimals: 8,
		LogoURL:        "https://assets.coingecko.com/coins/images/1/small/bitcoin.png",
		FiatSymbol:     "USDT",
		Sources: map[entity.Operation][]string{
			entity.OpBalance:      {entity.SourceEsplora},
			entity.OpTransactions: {entity.SourceEsplora},
			entity.OpTxStatus:     {entity.SourceEsplora},
		},
		Endpoints: entity.Endpoints{
			EsploraURLs:       []string{"https://blockstream.info/api", "https://mempool.space/api"},
			RequestsPerSecond: 5,
			Burst:             2,
		},
	}
)

var allKnownDefinitions = map[entity.NetworkID]entity.NetworkConfig{
	Ethereum.ID:  Ethereum,
	BSC.ID:       BSC,
	Polygon.ID:   Polygon,
	Arbitrum.ID:  Arbitrum,
	Optimism.ID:  Optimism,
	Base.ID:      Base,
	Avalanche.ID: Avalanche,
	Bitcoin.ID:   Bitcoin,
}

// NetworkDefinitionProvider resolves the built-in definitions merged with config
// overrides. It is immutable after construction.
type NetworkDefinitionProvider struct {
	logger            port.Logger
	activeNetworkDefs []entity.NetworkConfig
}

// NewNetworkDefinitionProvider merges cfg over the built-in table. Unknown network
// names, operations or source names are startup errors.
func NewNetworkDefinitionProvider(cfg *configloader.Config, logger port.Logger) (*NetworkDefinitionProvider, error) {
	overrides := make(map[entity.NetworkID]configloader.NetworkOverride, len(cfg.Networks))
	for name, o := range cfg.Networks {
		id, err := entity.ParseNetworkID(name)
		if err != nil {
			return nil, fmt.Errorf("config networks: %w", err)
		}
		overrides[id] = o
	}

	enabled := entity.AllNetworkIDs()
	if len(cfg.EnabledNetworks) > 0 {
		enabled = enabled[:0]
		for _, name := range cfg.EnabledNetworks {
			id, err := entity.ParseNetworkID(name)
			if err != nil {
				return nil, fmt.Errorf("config enabledNetworks: %w", err)
			}
			enabled = append(enabled, id)
		}
	}

	p := &NetworkDefinitionProvider{logger: logger}
	seen := make(map[entity.NetworkID]bool)
	for _, id := range enabled {
		if seen[id] {
			continue
		}
		seen[id] = true

		def, err := merge(cloneDefinition(allKnownDefinitions[id]), overrides[id], cfg.EtherscanAPIKey)
		if err != nil {
			return nil, err
		}
		p.activeNetworkDefs = append(p.activeNetworkDefs, def)
		logger.Debug("Active network", "network", def.ID, "chainId", def.ChainID, "sources", fmt.Sprint(def.Sources))
	}
	logger.Info("Network definitions resolved", "count", len(p.activeNetworkDefs))
	return p, nil
}

func merge(def entity.NetworkConfig, o configloader.NetworkOverride, defaultKey string) (entity.NetworkConfig, error) {
	if len(o.RPCURLs) > 0 {
		def.Endpoints.RPCURLs = o.RPCURLs
	}
	if o.ExplorerAPIURL != "" {
		def.Endpoints.ExplorerAPIURL = o.ExplorerAPIURL
	}
	if o.BlockscoutURL != "" {
		def.Endpoints.BlockscoutURL = o.BlockscoutURL
	}
	if o.ExplorerPageURL != "" {
		def.Endpoints.ExplorerPageURL = o.ExplorerPageURL
	}
	if o.BalanceSelector != "" {
		def.Endpoints.BalanceSelector = o.BalanceSelector
	}
	if len(o.EsploraURLs) > 0 {
		def.Endpoints.EsploraURLs = o.EsploraURLs
	}
	if o.RequestsPerSecond > 0 {
		def.Endpoints.RequestsPerSecond = o.RequestsPerSecond
	}
	if o.Burst > 0 {
		def.Endpoints.Burst = o.Burst
	}
	if o.FiatSymbol != "" {
		def.FiatSymbol = strings.ToUpper(o.FiatSymbol)
	}
	def.Endpoints.ExplorerAPIKey = o.ExplorerAPIKey
	if def.Endpoints.ExplorerAPIKey == "" {
		def.Endpoints.ExplorerAPIKey = defaultKey
	}
	for k, v := range o.PriceAliases {
		if def.PriceAliases == nil {
			def.PriceAliases = make(map[string]string)
		}
		def.PriceAliases[strings.ToUpper(k)] = strings.ToUpper(v)
	}

	for opName, names := range o.Sources {
		op, ok := parseOperation(opName)
		if !ok {
			return def, fmt.Errorf("network %s: unknown operation %q in sources", def.ID, opName)
		}
		def.Sources[op] = append([]string(nil), names...)
	}
	for op, names := range def.Sources {
		for _, n := range names {
			if !entity.IsKnownSource(n) {
				return def, fmt.Errorf("network %s: unknown source %q for %s", def.ID, n, op)
			}
		}
	}
	return def, nil
}

func parseOperation(s string) (entity.Operation, bool) {
	for _, op := range entity.AllOperations {
		if strings.EqualFold(string(op), s) {
			return op, true
		}
	}
	return "", false
}

// cloneDefinition deep-copies the maps and slices so overrides never touch the table.
func cloneDefinition(def entity.NetworkConfig) entity.NetworkConfig {
	out := def
	out.Sources = make(map[entity.Operation][]string, len(def.Sources))
	for op, names := range def.Sources {
		out.Sources[op] = append([]string(nil), names...)
	}
	if def.PriceAliases != nil {
		out.PriceAliases = make(map[string]string, len(def.PriceAliases))
		for k, v := range def.PriceAliases {
			out.PriceAliases[k] = v
		}
	}
	out.Endpoints.RPCURLs = append([]string(nil), def.Endpoints.RPCURLs...)
	out.Endpoints.EsploraURLs = append([]string(nil), def.Endpoints.EsploraURLs...)
	return out
}

// GetAllNetworkDefinitions returns the active network definitions in a stable order.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkConfig {
	if p == nil {
		return []entity.NetworkConfig{}
	}
	defsCopy := make([]entity.NetworkConfig, len(p.activeNetworkDefs))
	copy(defsCopy, p.activeNetworkDefs)
	return defsCopy
}

// GetNetworkDefinition returns an active network definition.
func (p *NetworkDefinitionProvider) GetNetworkDefinition(id entity.NetworkID) (entity.NetworkConfig, bool) {
	if p == nil {
		return entity.NetworkConfig{}, false
	}
	for _, def := range p.activeNetworkDefs {
		if def.ID == id {
			return def, true
		}
	}
	return entity.NetworkConfig{}, false
}
