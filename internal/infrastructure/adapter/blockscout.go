package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// Blockscout REST v2 shapes. Older deployments use "address"/"block", newer ones
// "address_hash"/"block_number", so both are decoded.
type blockscoutAddress struct {
	CoinBalance *string `json:"coin_balance"`
}

type blockscoutTokenBalance struct {
	Value string `json:"value"`
	Token struct {
		Address      string `json:"address"`
		AddressHash  string `json:"address_hash"`
		Name         string `json:"name"`
		Symbol       string `json:"symbol"`
		Decimals     string `json:"decimals"`
		Type         string `json:"type"`
		IconURL      string `json:"icon_url"`
		ExchangeRate string `json:"exchange_rate"`
	} `json:"token"`
}

type blockscoutHash struct {
	Hash string `json:"hash"`
}

type blockscoutTx struct {
	Hash        string          `json:"hash"`
	Block       *uint64         `json:"block"`
	BlockNumber *uint64         `json:"block_number"`
	Timestamp   string          `json:"timestamp"`
	From        *blockscoutHash `json:"from"`
	To          *blockscoutHash `json:"to"`
	CreatedAt   *blockscoutHash `json:"created_contract"`
	Value       string          `json:"value"`
	Fee         *struct {
		Value string `json:"value"`
	} `json:"fee"`
	GasUsed  string `json:"gas_used"`
	GasPrice string `json:"gas_price"`
	RawInput string `json:"raw_input"`
	Method   string `json:"method"`
	Status   string `json:"status"`
	Result   string `json:"result"`
}

type blockscoutTxPage struct {
	Items          []blockscoutTx                 `json:"items"`
	NextPageParams map[string]jsoniter.RawMessage `json:"next_page_params"`
}

// BlockscoutAdapter reads a Blockscout instance's REST v2 API.
type BlockscoutAdapter struct {
	http    *httpclient.Client
	network entity.NetworkConfig
	baseURL string
	logger  *zap.Logger
}

// NewBlockscoutAdapter creates the adapter for network's BlockscoutURL.
func NewBlockscoutAdapter(network entity.NetworkConfig, http *httpclient.Client, logger *zap.Logger) *BlockscoutAdapter {
	return &BlockscoutAdapter{
		http:    http,
		network: network,
		baseURL: strings.TrimRight(network.Endpoints.BlockscoutURL, "/") + "/api/v2",
		logger:  logger.Named("BlockscoutAdapter").With(zap.String("network", string(network.ID))),
	}
}

func (a *BlockscoutAdapter) Name() string { return entity.SourceBlockscout }

func (a *BlockscoutAdapter) Supports(op entity.Operation) bool {
	switch op {
	case entity.OpBalance, entity.OpTokens, entity.OpTransactions, entity.OpTxStatus:
		return true
	}
	return false
}

func (a *BlockscoutAdapter) Fetch(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error) {
	switch op {
	case entity.OpBalance:
		return a.balance(ctx, params.Address)
	case entity.OpTokens:
		return a.tokens(ctx, params.Address)
	case entity.OpTransactions:
		return a.transactions(ctx, params)
	case entity.OpTxStatus:
		return a.txStatus(ctx, params.Hash)
	}
	return entity.RawPayload{}, fmt.Errorf("%w: blockscout cannot serve %s", entity.ErrUnsupportedOperation, op)
}

func (a *BlockscoutAdapter) balance(ctx context.Context, address string) (entity.RawPayload, error) {
	var addr blockscoutAddress
	err := a.http.GetJSON(ctx, a.baseURL+"/addresses/"+url.PathEscape(address), &addr)
	if httpclient.IsStatus(err, http.StatusNotFound) {
		// Blockscout has never indexed this address.
		return entity.RawPayload{Balance: &entity.RawBalance{Amount: "0"}}, nil
	}
	if err != nil {
		return entity.RawPayload{}, err
	}
	amount := "0"
	if addr.CoinBalance != nil {
		amount = *addr.CoinBalance
	}
	return entity.RawPayload{Balance: &entity.RawBalance{Amount: amount}}, nil
}

func (a *BlockscoutAdapter) tokens(ctx context.Context, address string) (entity.RawPayload, error) {
	var rows []blockscoutTokenBalance
	err := a.http.GetJSON(ctx, a.baseURL+"/addresses/"+url.PathEscape(address)+"/token-balances", &rows)
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return entity.RawPayload{Tokens: []entity.RawToken{}}, nil
	}
	if err != nil {
		return entity.RawPayload{}, err
	}
	out := entity.RawPayload{Tokens: make([]entity.RawToken, 0, len(rows))}
	for _, r := range rows {
		contract := r.Token.AddressHash
		if contract == "" {
			contract = r.Token.Address
		}
		out.Tokens = append(out.Tokens, entity.RawToken{
			Contract: contract,
			Symbol:   r.Token.Symbol,
			Name:     r.Token.Name,
			Decimals: r.Token.Decimals,
			Balance:  r.Value,
			Type:     r.Token.Type,
			Image:    r.Token.IconURL,
			Price:    r.Token.ExchangeRate,
		})
	}
	return out, nil
}

// transactions walks keyset pages until it reaches the requested page.
func (a *BlockscoutAdapter) transactions(ctx context.Context, params entity.FetchParams) (entity.RawPayload, error) {
	base := a.baseURL + "/addresses/" + url.PathEscape(params.Address) + "/transactions"
	next := url.Values{}
	var page blockscoutTxPage

	for current := 1; ; current++ {
		page = blockscoutTxPage{}
		requestURL := base
		if len(next) > 0 {
			requestURL += "?" + next.Encode()
		}
		err := a.http.GetJSON(ctx, requestURL, &page)
		if httpclient.IsStatus(err, http.StatusNotFound) {
			return entity.RawPayload{Transactions: []entity.RawTransaction{}}, nil
		}
		if err != nil {
			return entity.RawPayload{}, err
		}
		if current >= params.Page {
			break
		}
		if len(page.NextPageParams) == 0 {
			return entity.RawPayload{Transactions: []entity.RawTransaction{}}, nil
		}
		next = pageParams(page.NextPageParams)
	}

	items := page.Items
	if params.Show > 0 && len(items) > params.Show {
		items = items[:params.Show]
	}
	out := entity.RawPayload{Transactions: make([]entity.RawTransaction, 0, len(items))}
	for _, tx := range items {
		var from, to, fee string
		if tx.From != nil {
			from = tx.From.Hash
		}
		switch {
		case tx.To != nil:
			to = tx.To.Hash
		case tx.CreatedAt != nil:
			to = tx.CreatedAt.Hash
		}
		if tx.Fee != nil {
			fee = tx.Fee.Value
		}
		out.Transactions = append(out.Transactions, entity.RawTransaction{
			Hash:      tx.Hash,
			Block:     blockscoutBlock(tx.Block, tx.BlockNumber),
			Timestamp: tx.Timestamp,
			From:      from,
			To:        to,
			Value:     tx.Value,
			Fee:       fee,
			GasUsed:   tx.GasUsed,
			GasPrice:  tx.GasPrice,
			Input:     tx.RawInput,
			Method:    tx.Method,
			Status:    blockscoutStatus(tx),
		})
	}
	return out, nil
}

func (a *BlockscoutAdapter) txStatus(ctx context.Context, hash string) (entity.RawPayload, error) {
	var tx blockscoutTx
	err := a.http.GetJSON(ctx, a.baseURL+"/transactions/"+url.PathEscape(hash), &tx)
	if httpclient.IsStatus(err, http.StatusNotFound) || httpclient.IsStatus(err, http.StatusUnprocessableEntity) {
		return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: false}}, nil
	}
	if err != nil {
		return entity.RawPayload{}, err
	}
	return entity.RawPayload{TxStatus: &entity.RawTxStatus{
		Found:  true,
		Status: blockscoutStatus(tx),
		Block:  blockscoutBlock(tx.Block, tx.BlockNumber),
	}}, nil
}

// pageParams turns next_page_params into query values without losing integer precision.
func pageParams(raw map[string]jsoniter.RawMessage) url.Values {
	out := url.Values{}
	for k, v := range raw {
		text := strings.TrimSpace(string(v))
		if text == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			text = s
		}
		out.Set(k, text)
	}
	return out
}

func blockscoutBlock(block, blockNumber *uint64) string {
	switch {
	case blockNumber != nil:
		return strconv.FormatUint(*blockNumber, 10)
	case block != nil:
		return strconv.FormatUint(*block, 10)
	}
	return ""
}

func blockscoutStatus(tx blockscoutTx) string {
	if tx.Result == "pending" {
		return "pending"
	}
	return tx.Status
}
