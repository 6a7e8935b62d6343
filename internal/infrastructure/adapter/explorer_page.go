package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DefaultBalanceSelector matches the native balance block of Etherscan-style address pages.
const DefaultBalanceSelector = "#ContentPlaceHolder1_divSummary h4:contains('Balance') + div"

var pageAmountRe = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]+)?`)

// ExplorerPageAdapter scrapes the native balance from an explorer's address HTML page.
// It is the last resort when neither the explorer API nor RPC answers. The selector
// lives in config so markup changes never need a code change.
type ExplorerPageAdapter struct {
	http     *httpclient.Client
	network  entity.NetworkConfig
	pageURL  string
	selector string
	logger   *zap.Logger
}

// NewExplorerPageAdapter creates the adapter for network's ExplorerPageURL.
func NewExplorerPageAdapter(network entity.NetworkConfig, http *httpclient.Client, logger *zap.Logger) *ExplorerPageAdapter {
	selector := strings.TrimSpace(network.Endpoints.BalanceSelector)
	if selector == "" {
		selector = DefaultBalanceSelector
	}
	return &ExplorerPageAdapter{
		http:     http,
		network:  network,
		pageURL:  strings.TrimRight(network.Endpoints.ExplorerPageURL, "/"),
		selector: selector,
		logger:   logger.Named("ExplorerPageAdapter").With(zap.String("network", string(network.ID))),
	}
}

func (a *ExplorerPageAdapter) Name() string { return entity.SourceExplorerPage }

func (a *ExplorerPageAdapter) Supports(op entity.Operation) bool { return op == entity.OpBalance }

func (a *ExplorerPageAdapter) Fetch(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error) {
	if op != entity.OpBalance {
		return entity.RawPayload{}, fmt.Errorf("%w: explorer page cannot serve %s", entity.ErrUnsupportedOperation, op)
	}

	body, err := a.http.Get(ctx, a.pageURL+"/address/"+url.PathEscape(params.Address))
	if err != nil {
		return entity.RawPayload{}, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return entity.RawPayload{}, fmt.Errorf("%w: parse address page: %v", entity.ErrDecode, err)
	}

	sel := doc.Find(a.selector).First()
	if sel.Length() == 0 {
		a.logger.Warn("Balance selector matched nothing", zap.String("selector", a.selector))
		return entity.RawPayload{}, fmt.Errorf("%w: selector %q matched nothing", entity.ErrDecode, a.selector)
	}
	amount := pageAmountRe.FindString(strings.TrimSpace(sel.Text()))
	if amount == "" {
		return entity.RawPayload{}, fmt.Errorf("%w: no amount in %q", entity.ErrDecode, strings.TrimSpace(sel.Text()))
	}
	return entity.RawPayload{Balance: &entity.RawBalance{Amount: strings.ReplaceAll(amount, ",", ""), Scaled: true}}, nil
}
