package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/accountloader"
	"portfolio_aggregator/internal/pkg/logger"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runAccountsFile fans a balance batch out over every account listed in path and
// writes the result as JSON to out. flushDiagnostics runs before it returns, since a
// failed run ends in os.Exit and skips main's deferred calls.
func runAccountsFile(path string, networks []entity.NetworkConfig, fanOut port.PortfolioFanOut, timeout time.Duration, out io.Writer, flushDiagnostics func() error) error {
	defer func() {
		if err := flushDiagnostics(); err != nil {
			logger.Warn("Flushing fetch attempt diagnostics failed", "error", err)
		}
	}()

	accounts, err := accountloader.NewAccountFileLoader(path, logger.Named("accounts")).GetAccounts(networks)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no usable accounts in %s", path)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	batch, err := fanOut.GetBalances(ctx, accounts)
	if err != nil {
		return fmt.Errorf("balance batch failed: %w", err)
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
