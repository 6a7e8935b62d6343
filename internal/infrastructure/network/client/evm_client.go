package client

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// maxRPCBatchSize caps the number of calls in one JSON-RPC batch request.
const maxRPCBatchSize = 100

// ERC20 ABI minimal part for balanceOf
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once
	erc20MethodID   []byte
)

func initParsedERC20ABI() {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
		balanceOf, ok := parsedERC20ABI.Methods["balanceOf"]
		if !ok {
			panic("balanceOf method not found in parsed ERC20 ABI")
		}
		erc20MethodID = balanceOf.ID
	})
}

// RPCAdapter is the "rpc" source: a JSON-RPC node reached through go-ethereum.
// Token balances come from one batched balanceOf call over the network's known
// token list, since a node cannot enumerate holdings.
type RPCAdapter struct {
	provider *EVMClientProvider
	network  entity.NetworkConfig
	tokens   []entity.TokenInfo
	limiter  *rate.Limiter
	logger   port.Logger
}

// NewRPCAdapter creates the rpc adapter for network. tokens is the list of known
// contracts queried for the tokens operation. Every node call waits on a limiter built
// from the network's RequestsPerSecond and Burst; zero RequestsPerSecond disables it.
func NewRPCAdapter(network entity.NetworkConfig, provider *EVMClientProvider, tokens []entity.TokenInfo, logger port.Logger) *RPCAdapter {
	initParsedERC20ABI()
	var limiter *rate.Limiter
	if rps := network.Endpoints.RequestsPerSecond; rps > 0 {
		burst := network.Endpoints.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RPCAdapter{provider: provider, network: network, tokens: tokens, limiter: limiter, logger: logger}
}

// wait blocks until the limiter admits one more node call.
func (a *RPCAdapter) wait(ctx context.Context) error {
	if a.limiter == nil {
		return nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rpc rate limiter on %s: %v", entity.ErrUpstreamTimeout, a.network.ID, err)
	}
	return nil
}

func (a *RPCAdapter) Name() string { return entity.SourceRPC }

func (a *RPCAdapter) Supports(op entity.Operation) bool {
	switch op {
	case entity.OpBalance, entity.OpTokens, entity.OpTxStatus, entity.OpGasTracker:
		return true
	}
	return false
}

func (a *RPCAdapter) Fetch(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error) {
	if !a.Supports(op) {
		return entity.RawPayload{}, fmt.Errorf("%w: rpc cannot serve %s", entity.ErrUnsupportedOperation, op)
	}
	client, err := a.provider.GetClient(ctx, a.network)
	if err != nil {
		return entity.RawPayload{}, rpcError(err)
	}

	switch op {
	case entity.OpBalance:
		return a.balance(ctx, client, params.Address)
	case entity.OpTokens:
		return a.tokenBalances(ctx, client, params.Address)
	case entity.OpTxStatus:
		return a.txStatus(ctx, client, params.Hash)
	default:
		return a.gas(ctx, client)
	}
}

func (a *RPCAdapter) balance(ctx context.Context, client *ethclient.Client, address string) (entity.RawPayload, error) {
	if err := a.wait(ctx); err != nil {
		return entity.RawPayload{}, err
	}
	wei, err := client.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return entity.RawPayload{}, rpcError(err)
	}
	return entity.RawPayload{Balance: &entity.RawBalance{Amount: wei.String()}}, nil
}

// tokenBalances batches eth_call balanceOf for every known token and keeps the
// non-zero ones. Per-token failures are skipped; a failed batch is an error.
func (a *RPCAdapter) tokenBalances(ctx context.Context, client *ethclient.Client, address string) (entity.RawPayload, error) {
	out := entity.RawPayload{Tokens: []entity.RawToken{}}
	if len(a.tokens) == 0 {
		return out, nil
	}

	owner := common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)
	callData := append(append([]byte{}, erc20MethodID...), owner...)

	batch := make([]rpc.BatchElem, len(a.tokens))
	for i, token := range a.tokens {
		batch[i] = rpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{map[string]interface{}{
				"to":   common.HexToAddress(token.Address),
				"data": hexutil.Bytes(callData),
			}, "latest"},
			Result: new(hexutil.Bytes),
		}
	}
	for _, chunk := range utils.Batch(batch, maxRPCBatchSize) {
		if err := a.wait(ctx); err != nil {
			return entity.RawPayload{}, err
		}
		if err := client.Client().BatchCallContext(ctx, chunk); err != nil {
			return entity.RawPayload{}, rpcError(err)
		}
	}

	failed := 0
	for i, elem := range batch {
		token := a.tokens[i]
		if elem.Error != nil {
			failed++
			a.logger.Debug("balanceOf failed", "network", a.network.ID, "token", token.Symbol, "error", elem.Error)
			continue
		}
		balance, err := unpackBalance(*elem.Result.(*hexutil.Bytes))
		if err != nil {
			failed++
			a.logger.Debug("balanceOf returned garbage", "network", a.network.ID, "token", token.Symbol, "error", err)
			continue
		}
		if balance.Sign() == 0 {
			continue
		}
		out.Tokens = append(out.Tokens, entity.RawToken{
			Contract: token.Address,
			Symbol:   token.Symbol,
			Name:     token.Name,
			Decimals: fmt.Sprint(token.Decimals),
			Balance:  balance.String(),
			Image:    token.LogoURI,
		})
	}
	if failed == len(batch) {
		return entity.RawPayload{}, fmt.Errorf("%w: every balanceOf call failed on %s", entity.ErrUpstream, a.network.ID)
	}
	return out, nil
}

func unpackBalance(result hexutil.Bytes) (*big.Int, error) {
	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := parsedERC20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, err
	}
	if len(unpacked) == 0 {
		return nil, errors.New("balanceOf unpack returned no data")
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf type %T", unpacked[0])
	}
	return balance, nil
}

func (a *RPCAdapter) txStatus(ctx context.Context, client *ethclient.Client, hash string) (entity.RawPayload, error) {
	txHash := common.HexToHash(hash)
	if err := a.wait(ctx); err != nil {
		return entity.RawPayload{}, err
	}
	receipt, err := client.TransactionReceipt(ctx, txHash)
	if err == nil {
		status := "0"
		if receipt.Status == 1 {
			status = "1"
		}
		var block string
		if receipt.BlockNumber != nil {
			block = receipt.BlockNumber.String()
		}
		return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: true, Status: status, Block: block}}, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return entity.RawPayload{}, rpcError(err)
	}

	// No receipt yet: the node may still hold it in the mempool.
	if err := a.wait(ctx); err != nil {
		return entity.RawPayload{}, err
	}
	_, pending, err := client.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: false}}, nil
	}
	if err != nil {
		return entity.RawPayload{}, rpcError(err)
	}
	if !pending {
		return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: false}}, nil
	}
	return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: true, Status: "pending"}}, nil
}

// gas derives tiers from the node: safe = base+tip, propose = eth_gasPrice,
// fast = 2*base+tip. Chains without EIP-1559 report a zero base fee and tip.
func (a *RPCAdapter) gas(ctx context.Context, client *ethclient.Client) (entity.RawPayload, error) {
	if err := a.wait(ctx); err != nil {
		return entity.RawPayload{}, err
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return entity.RawPayload{}, rpcError(err)
	}
	if err := a.wait(ctx); err != nil {
		return entity.RawPayload{}, err
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		a.logger.Debug("eth_maxPriorityFeePerGas unavailable", "network", a.network.ID, "error", err)
		tip = big.NewInt(0)
	}
	baseFee := big.NewInt(0)
	if err := a.wait(ctx); err != nil {
		return entity.RawPayload{}, err
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return entity.RawPayload{}, rpcError(err)
	}
	if header.BaseFee != nil {
		baseFee = header.BaseFee
	}

	safe := new(big.Int).Add(baseFee, tip)
	fast := new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	return entity.RawPayload{Gas: &entity.RawGas{
		Safe:    utils.WeiToGwei(safe),
		Propose: utils.WeiToGwei(gasPrice),
		Fast:    utils.WeiToGwei(fast),
		BaseFee: utils.WeiToGwei(baseFee),
	}}, nil
}

func rpcError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: rpc: %v", entity.ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: rpc: %v", entity.ErrUpstream, err)
}
