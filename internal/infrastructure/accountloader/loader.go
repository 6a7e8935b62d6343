package accountloader

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
)

// AccountFileLoader reads (address, network) pairs for a one-shot fan-out run.
//
// Each non-empty line that is not a # comment is either "<network> <address>" or a
// bare "<address>", which expands to every given network whose address format
// accepts it.
type AccountFileLoader struct {
	filePath string
	logger   port.Logger
}

// NewAccountFileLoader creates a loader for path.
func NewAccountFileLoader(path string, logger port.Logger) *AccountFileLoader {
	return &AccountFileLoader{filePath: path, logger: logger}
}

// GetAccounts parses the file. Malformed lines are logged and skipped; duplicate
// pairs are dropped.
func (l *AccountFileLoader) GetAccounts(networks []entity.NetworkConfig) ([]entity.AccountRef, error) {
	file, err := os.Open(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open accounts file %s: %w", l.filePath, err)
	}
	defer file.Close()

	byID := make(map[entity.NetworkID]entity.NetworkConfig, len(networks))
	for _, n := range networks {
		byID[n.ID] = n
	}

	var accounts []entity.AccountRef
	seen := make(map[entity.AccountRef]bool)
	add := func(network entity.NetworkConfig, address string) bool {
		normalized, ok := utils.NormalizeAddress(network.Kind, address)
		if !ok {
			return false
		}
		ref := entity.AccountRef{Address: normalized, Network: string(network.ID)}
		if !seen[ref] {
			seen[ref] = true
			accounts = append(accounts, ref)
		}
		return true
	}

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			accepted := false
			for _, n := range networks {
				if add(n, fields[0]) {
					accepted = true
				}
			}
			if !accepted {
				l.logger.Warn("Skipping address no enabled network accepts", "file", l.filePath, "line", lineNum, "address", fields[0])
			}
		case 2:
			id, err := entity.ParseNetworkID(fields[0])
			if err != nil {
				l.logger.Warn("Skipping unknown network", "file", l.filePath, "line", lineNum, "network", fields[0])
				continue
			}
			network, ok := byID[id]
			if !ok {
				l.logger.Warn("Skipping disabled network", "file", l.filePath, "line", lineNum, "network", id)
				continue
			}
			if !add(network, fields[1]) {
				l.logger.Warn("Skipping invalid address", "file", l.filePath, "line", lineNum, "network", id, "address", fields[1])
			}
		default:
			l.logger.Warn("Skipping malformed line", "file", l.filePath, "line", lineNum)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning accounts file %s: %w", l.filePath, err)
	}

	l.logger.Info("Accounts loaded", "count", len(accounts), "path", l.filePath)
	return accounts, nil
}
