package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/infrastructure/httpclient"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// etherscanEnvelope is the `{status, message, result}` wrapper every Etherscan-family
// module returns. Proxy calls use the JSON-RPC shape instead and fill Error.
type etherscanEnvelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message"`
	Result  jsoniter.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type etherscanTokenBalance struct {
	TokenAddress  string `json:"TokenAddress"`
	TokenName     string `json:"TokenName"`
	TokenSymbol   string `json:"TokenSymbol"`
	TokenQuantity string `json:"TokenQuantity"`
	TokenDivisor  string `json:"TokenDivisor"`
	TokenPriceUSD string `json:"TokenPriceUSD"`
}

type etherscanTx struct {
	BlockNumber     string `json:"blockNumber"`
	TimeStamp       string `json:"timeStamp"`
	Hash            string `json:"hash"`
	From            string `json:"from"`
	To              string `json:"to"`
	Value           string `json:"value"`
	GasPrice        string `json:"gasPrice"`
	GasUsed         string `json:"gasUsed"`
	IsError         string `json:"isError"`
	ReceiptStatus   string `json:"txreceipt_status"`
	Input           string `json:"input"`
	FunctionName    string `json:"functionName"`
	ContractAddress string `json:"contractAddress"`
}

type etherscanReceipt struct {
	Status      string `json:"status"`
	BlockNumber string `json:"blockNumber"`
}

type etherscanGasOracle struct {
	SafeGasPrice    string `json:"SafeGasPrice"`
	ProposeGasPrice string `json:"ProposeGasPrice"`
	FastGasPrice    string `json:"FastGasPrice"`
	SuggestBaseFee  string `json:"suggestBaseFee"`
}

type etherscanSource struct {
	SourceCode   string `json:"SourceCode"`
	ABI          string `json:"ABI"`
	ContractName string `json:"ContractName"`
}

// EtherscanAdapter talks to an Etherscan-family explorer API (etherscan, bscscan,
// polygonscan and the v2 multichain endpoint). It doubles as the contract verifier.
type EtherscanAdapter struct {
	http    *httpclient.Client
	network entity.NetworkConfig
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

// NewEtherscanAdapter creates the adapter for network's ExplorerAPIURL.
func NewEtherscanAdapter(network entity.NetworkConfig, http *httpclient.Client, logger *zap.Logger) *EtherscanAdapter {
	return &EtherscanAdapter{
		http:    http,
		network: network,
		baseURL: strings.TrimRight(network.Endpoints.ExplorerAPIURL, "/"),
		apiKey:  network.Endpoints.ExplorerAPIKey,
		logger:  logger.Named("EtherscanAdapter").With(zap.String("network", string(network.ID))),
	}
}

func (a *EtherscanAdapter) Name() string { return entity.SourceEtherscan }

func (a *EtherscanAdapter) Supports(op entity.Operation) bool {
	switch op {
	case entity.OpBalance, entity.OpTokens, entity.OpTransactions, entity.OpTxStatus, entity.OpGasTracker:
		return true
	}
	return false
}

func (a *EtherscanAdapter) Fetch(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error) {
	switch op {
	case entity.OpBalance:
		return a.balance(ctx, params.Address)
	case entity.OpTokens:
		return a.tokens(ctx, params)
	case entity.OpTransactions:
		return a.transactions(ctx, params)
	case entity.OpTxStatus:
		return a.txStatus(ctx, params.Hash)
	case entity.OpGasTracker:
		return a.gas(ctx)
	}
	return entity.RawPayload{}, fmt.Errorf("%w: etherscan cannot serve %s", entity.ErrUnsupportedOperation, op)
}

// IsContractVerified implements port.ContractVerifier using getsourcecode.
func (a *EtherscanAdapter) IsContractVerified(ctx context.Context, contract string) (bool, error) {
	var sources []etherscanSource
	if _, err := a.call(ctx, url.Values{"module": {"contract"}, "action": {"getsourcecode"}, "address": {contract}}, &sources); err != nil {
		return false, err
	}
	if len(sources) == 0 {
		return false, nil
	}
	src := sources[0]
	return strings.TrimSpace(src.SourceCode) != "" && src.ABI != "Contract source code not verified", nil
}

func (a *EtherscanAdapter) balance(ctx context.Context, address string) (entity.RawPayload, error) {
	var wei string
	if _, err := a.call(ctx, url.Values{"module": {"account"}, "action": {"balance"}, "address": {address}, "tag": {"latest"}}, &wei); err != nil {
		return entity.RawPayload{}, err
	}
	return entity.RawPayload{Balance: &entity.RawBalance{Amount: wei}}, nil
}

func (a *EtherscanAdapter) tokens(ctx context.Context, params entity.FetchParams) (entity.RawPayload, error) {
	var rows []etherscanTokenBalance
	empty, err := a.call(ctx, url.Values{
		"module":  {"account"},
		"action":  {"addresstokenbalance"},
		"address": {params.Address},
		"page":    {"1"},
		"offset":  {"100"},
	}, &rows)
	if err != nil {
		return entity.RawPayload{}, err
	}
	out := entity.RawPayload{Tokens: make([]entity.RawToken, 0, len(rows))}
	if empty {
		return out, nil
	}
	for _, r := range rows {
		out.Tokens = append(out.Tokens, entity.RawToken{
			Contract: r.TokenAddress,
			Symbol:   r.TokenSymbol,
			Name:     r.TokenName,
			Decimals: r.TokenDivisor,
			Balance:  r.TokenQuantity,
			Price:    r.TokenPriceUSD,
		})
	}
	return out, nil
}

func (a *EtherscanAdapter) transactions(ctx context.Context, params entity.FetchParams) (entity.RawPayload, error) {
	var rows []etherscanTx
	empty, err := a.call(ctx, url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {params.Address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"page":       {strconv.Itoa(params.Page)},
		"offset":     {strconv.Itoa(params.Show)},
		"sort":       {"desc"},
	}, &rows)
	if err != nil {
		return entity.RawPayload{}, err
	}
	out := entity.RawPayload{Transactions: make([]entity.RawTransaction, 0, len(rows))}
	if empty {
		return out, nil
	}
	for _, r := range rows {
		to := r.To
		if to == "" {
			to = r.ContractAddress
		}
		out.Transactions = append(out.Transactions, entity.RawTransaction{
			Hash:      r.Hash,
			Block:     r.BlockNumber,
			Timestamp: r.TimeStamp,
			From:      r.From,
			To:        to,
			Value:     r.Value,
			GasUsed:   r.GasUsed,
			GasPrice:  r.GasPrice,
			Input:     r.Input,
			Method:    r.FunctionName,
			Status:    etherscanTxStatus(r),
		})
	}
	return out, nil
}

func (a *EtherscanAdapter) txStatus(ctx context.Context, hash string) (entity.RawPayload, error) {
	var receipt *etherscanReceipt
	if _, err := a.call(ctx, url.Values{"module": {"proxy"}, "action": {"eth_getTransactionReceipt"}, "txhash": {hash}}, &receipt); err != nil {
		return entity.RawPayload{}, err
	}
	if receipt == nil {
		return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: false}}, nil
	}
	return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: true, Status: receipt.Status, Block: receipt.BlockNumber}}, nil
}

func (a *EtherscanAdapter) gas(ctx context.Context) (entity.RawPayload, error) {
	var oracle etherscanGasOracle
	if _, err := a.call(ctx, url.Values{"module": {"gastracker"}, "action": {"gasoracle"}}, &oracle); err != nil {
		return entity.RawPayload{}, err
	}
	if oracle.ProposeGasPrice == "" {
		return entity.RawPayload{}, fmt.Errorf("%w: gas oracle returned no prices", entity.ErrDecode)
	}
	return entity.RawPayload{Gas: &entity.RawGas{
		Safe:    oracle.SafeGasPrice,
		Propose: oracle.ProposeGasPrice,
		Fast:    oracle.FastGasPrice,
		BaseFee: oracle.SuggestBaseFee,
	}}, nil
}

// call performs one API request and decodes its result into out. empty is true when the
// provider answered with its "no records" status, which is a valid empty result.
func (a *EtherscanAdapter) call(ctx context.Context, query url.Values, out any) (empty bool, err error) {
	if a.network.ChainID != 0 {
		query.Set("chainid", strconv.FormatUint(a.network.ChainID, 10))
	}
	if a.apiKey != "" {
		query.Set("apikey", a.apiKey)
	}
	requestURL := a.baseURL + "?" + query.Encode()

	var env etherscanEnvelope
	if err := a.http.GetJSON(ctx, requestURL, &env); err != nil {
		return false, err
	}
	if env.Error != nil {
		return false, fmt.Errorf("%w: etherscan rpc error %d: %s", entity.ErrUpstream, env.Error.Code, env.Error.Message)
	}
	if env.Status == "0" {
		if isNoRecords(env.Message) {
			return true, nil
		}
		var detail string
		_ = json.Unmarshal(env.Result, &detail)
		a.logger.Debug("Explorer returned an error envelope", zap.String("action", query.Get("action")), zap.String("message", env.Message), zap.String("detail", detail))
		return false, fmt.Errorf("%w: etherscan %s: %s %s", entity.ErrUpstream, query.Get("action"), env.Message, detail)
	}
	if len(env.Result) == 0 {
		return false, fmt.Errorf("%w: etherscan %s: missing result", entity.ErrDecode, query.Get("action"))
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return false, fmt.Errorf("%w: etherscan %s: %v", entity.ErrDecode, query.Get("action"), err)
	}
	return false, nil
}

func isNoRecords(message string) bool {
	m := strings.ToLower(message)
	return strings.HasPrefix(m, "no transactions found") || strings.HasPrefix(m, "no records found") || strings.HasPrefix(m, "no token")
}

func etherscanTxStatus(r etherscanTx) string {
	switch {
	case r.IsError == "1" || r.ReceiptStatus == "0":
		return "0"
	case r.IsError == "0" || r.ReceiptStatus == "1":
		return "1"
	}
	return ""
}
