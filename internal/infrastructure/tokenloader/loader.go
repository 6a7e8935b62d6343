package tokenloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const defaultTokenDirectoryPath = "data/tokens"

// TokenFileLoader implements port.TokenProvider over a directory of <network>.json files.
type TokenFileLoader struct {
	tokenDirPath string
	logger       port.Logger
}

// NewTokenLoader creates a loader reading dir; an empty dir means data/tokens.
func NewTokenLoader(dir string, logger port.Logger) *TokenFileLoader {
	if dir == "" {
		dir = defaultTokenDirectoryPath
	}
	return &TokenFileLoader{tokenDirPath: dir, logger: logger}
}

// GetTokensByNetwork reads the token list of every active EVM network. A missing
// directory or file just means the rpc adapter has no token list for that network.
// Entries with a foreign chainId or a malformed contract address are skipped.
func (l *TokenFileLoader) GetTokensByNetwork(activeNetworks []entity.NetworkConfig) (map[entity.NetworkID][]entity.TokenInfo, error) {
	out := make(map[entity.NetworkID][]entity.TokenInfo)

	if _, err := os.Stat(l.tokenDirPath); err != nil {
		if os.IsNotExist(err) {
			l.logger.Warn("Token directory not found, rpc token lookups are disabled", "path", l.tokenDirPath)
			return out, nil
		}
		return nil, fmt.Errorf("failed to stat token directory %s: %w", l.tokenDirPath, err)
	}

	for _, network := range activeNetworks {
		if network.Kind != entity.KindEVM {
			continue
		}
		filePath := filepath.Join(l.tokenDirPath, string(network.ID)+".json")
		data, err := os.ReadFile(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Debug("No token file for network", "network", network.ID)
				continue
			}
			return nil, fmt.Errorf("failed to read token file %s: %w", filePath, err)
		}

		var tokensInFile []entity.TokenInfo
		if err := json.Unmarshal(data, &tokensInFile); err != nil {
			return nil, fmt.Errorf("failed to unmarshal token file %s: %w", filePath, err)
		}

		valid := make([]entity.TokenInfo, 0, len(tokensInFile))
		seen := make(map[string]bool, len(tokensInFile))
		for _, token := range tokensInFile {
			if token.ChainID != network.ChainID {
				l.logger.Warn("Token has mismatched chainId, skipping",
					"file", filePath, "symbol", token.Symbol, "tokenChainId", token.ChainID, "expectedChainId", network.ChainID)
				continue
			}
			if !common.IsHexAddress(token.Address) {
				l.logger.Warn("Token has invalid contract address, skipping", "file", filePath, "symbol", token.Symbol, "address", token.Address)
				continue
			}
			key := strings.ToLower(token.Address)
			if seen[key] {
				continue
			}
			seen[key] = true
			valid = append(valid, token)
		}

		if len(valid) > 0 {
			out[network.ID] = valid
		}
		l.logger.Info("Loaded token list", "network", network.ID, "count", len(valid))
	}
	return out, nil
}
