package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"

	"github.com/shopspring/decimal"
)

const (
	defaultTokenDecimals = 18
	maxTokenDecimals     = 36
)

// Normalizer maps provider payloads onto the canonical records. It never fails: malformed
// values are replaced with sentinels or zero.
type Normalizer struct {
	now func() time.Time
}

// NewNormalizer creates a Normalizer using the wall clock for transaction ages.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NativeHolding builds the synthetic token row for the network's native asset.
func (n *Normalizer) NativeHolding(network entity.NetworkConfig, balance *entity.RawBalance, price decimal.Decimal) entity.TokenHolding {
	raw, scaled := "0", false
	if balance != nil {
		raw, scaled = balance.Amount, balance.Scaled
	}
	name := network.NativeName
	if name == "" {
		name = network.NativeSymbol
	}
	return n.holding(network, holdingInput{
		contract:  utils.ZeroAddressFor(network.Kind),
		symbol:    network.NativeSymbol,
		name:      name,
		decimals:  network.NativeDecimals,
		raw:       raw,
		scaled:    scaled,
		price:     price,
		tokenType: entity.TokenTypeNative,
		image:     network.LogoURL,
	})
}

// NormalizeTokens converts token rows. prices is keyed by upper-case symbol; symbols
// missing from it fall back to the provider's own unit price, else zero. Rows are
// deduplicated by contract and ordered by fiat value.
func (n *Normalizer) NormalizeTokens(network entity.NetworkConfig, raws []entity.RawToken, prices map[string]decimal.Decimal) []entity.TokenHolding {
	out := make([]entity.TokenHolding, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		contract := utils.AddressOrZero(network.Kind, raw.Contract)
		symbol := strings.TrimSpace(raw.Symbol)
		if contract == utils.ZeroAddressFor(network.Kind) && strings.EqualFold(symbol, network.NativeSymbol) {
			// The native row is always synthesised separately.
			continue
		}
		key := contract
		if contract == utils.ZeroAddressFor(network.Kind) {
			key = contract + "/" + strings.ToUpper(symbol)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		price, ok := prices[strings.ToUpper(symbol)]
		if !ok || price.IsZero() {
			price = utils.ParseAmount(raw.Price)
		}

		name := strings.TrimSpace(raw.Name)
		if symbol == "" {
			symbol = "UNKNOWN"
		}
		if name == "" {
			name = symbol
		}
		image := strings.TrimSpace(raw.Image)
		if image == "" {
			image = network.LogoURL
		}

		out = append(out, n.holding(network, holdingInput{
			contract:  contract,
			symbol:    symbol,
			name:      name,
			decimals:  parseDecimals(raw.Decimals),
			raw:       raw.Balance,
			scaled:    raw.Scaled,
			price:     price,
			tokenType: tokenTypeTag(raw.Type),
			image:     image,
		}))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FiatValue != out[j].FiatValue {
			return out[i].FiatValue > out[j].FiatValue
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// NormalizeTransactions converts transaction rows for queried, valuing them at the native price.
func (n *Normalizer) NormalizeTransactions(network entity.NetworkConfig, raws []entity.RawTransaction, queried string, price decimal.Decimal) []entity.Transaction {
	now := n.now()
	if price.IsNegative() {
		price = decimal.Zero
	}
	out := make([]entity.Transaction, 0, len(raws))
	seen := make(map[string]struct{}, len(raws))
	zeroHash := utils.ZeroHashFor(network.Kind)

	for _, raw := range raws {
		hash := utils.HashOrZero(network.Kind, raw.Hash)
		if hash != zeroHash {
			if _, dup := seen[hash]; dup {
				continue
			}
			seen[hash] = struct{}{}
		}

		from := utils.AddressOrZero(network.Kind, raw.From)
		to := utils.AddressOrZero(network.Kind, raw.To)
		traffic := entity.TrafficIn
		if utils.SameAddress(from, queried) {
			traffic = entity.TrafficOut
		}

		amount := utils.ParseAmount(raw.Value)
		if !raw.Scaled {
			amount = utils.ScaleUnits(amount, network.NativeDecimals)
		}
		fee := n.transactionFee(network, raw)

		block := blockNumber(raw.Block)
		ts, _ := utils.ParseTimestamp(raw.Timestamp)

		out = append(out, entity.Transaction{
			Hash:       hash,
			Method:     methodTag(raw),
			Block:      block,
			Age:        utils.FormatAge(ts, now),
			Date:       utils.FormatDate(ts),
			From:       from,
			Traffic:    traffic,
			To:         to,
			FiatAmount: utils.FormatFiat(amount.Mul(price)),
			Amount:     utils.FormatAmount(amount),
			Asset:      network.NativeSymbol,
			TxnFee:     utils.FormatAmount(fee),
			Status:     txStatus(raw.Status, block),
		})
	}
	return out
}

// ErrorTransaction is the single sentinel row that replaces the list when fetching failed.
func (n *Normalizer) ErrorTransaction(network entity.NetworkConfig, queried string) entity.Transaction {
	return entity.Transaction{
		Hash:       utils.ZeroHashFor(network.Kind),
		Method:     entity.MethodError,
		From:       utils.AddressOrZero(network.Kind, queried),
		Traffic:    entity.TrafficError,
		To:         utils.ZeroAddressFor(network.Kind),
		FiatAmount: utils.FormatFiat(decimal.Zero),
		Amount:     "0",
		Asset:      network.NativeSymbol,
		TxnFee:     "0",
		Status:     entity.TxStatusFailed,
	}
}

// Portfolio assembles the root record. native always becomes index 0 of the token list.
func (n *Normalizer) Portfolio(network entity.NetworkConfig, address string, native entity.TokenHolding, tokens []entity.TokenHolding, txs []entity.Transaction, failed bool) entity.AddressPortfolio {
	holdings := make([]entity.TokenHolding, 0, len(tokens)+1)
	holdings = append(holdings, native)
	holdings = append(holdings, tokens...)

	total := decimal.Zero
	for _, h := range holdings {
		total = total.Add(utils.ParseAmount(h.FiatBalance))
	}
	if txs == nil {
		txs = []entity.Transaction{}
	}

	kind := entity.PortfolioTypeAccount
	if failed {
		kind = entity.PortfolioTypeError
	}

	return entity.AddressPortfolio{
		Address:     utils.AddressOrZero(network.Kind, address),
		Balance:     native.Amount,
		FiatBalance: native.FiatValue,
		Type:        kind,
		Account: entity.Account{
			Asset:       native.Symbol,
			FiatBalance: native.FiatBalance,
			Price:       native.Price,
		},
		TokenHoldings: entity.TokenHoldings{
			Total:   len(holdings),
			Balance: utils.FormatFiat(total),
			Tokens:  holdings,
		},
		Transactions: txs,
	}
}

// DefaultPortfolio is the empty but structurally valid record returned on failure.
func (n *Normalizer) DefaultPortfolio(network entity.NetworkConfig, address string) entity.AddressPortfolio {
	native := n.NativeHolding(network, nil, decimal.Zero)
	return n.Portfolio(network, address, native, nil, nil, true)
}

var errInvalidPortfolio = errors.New("invalid portfolio")

// Validate checks the root record is complete and internally consistent.
func (n *Normalizer) Validate(p entity.AddressPortfolio) error {
	switch {
	case p.Address == "":
		return fmt.Errorf("%w: missing address", errInvalidPortfolio)
	case p.Balance == "":
		return fmt.Errorf("%w: missing balance", errInvalidPortfolio)
	case !isFinite(p.FiatBalance) || p.FiatBalance < 0:
		return fmt.Errorf("%w: bad fiat balance %v", errInvalidPortfolio, p.FiatBalance)
	case p.Type != entity.PortfolioTypeAccount && p.Type != entity.PortfolioTypeError:
		return fmt.Errorf("%w: unknown type %q", errInvalidPortfolio, p.Type)
	case p.Account.Asset == "" || p.Account.Price == "" || p.Account.FiatBalance == "":
		return fmt.Errorf("%w: incomplete account", errInvalidPortfolio)
	case p.TokenHoldings.Tokens == nil || p.TokenHoldings.Balance == "":
		return fmt.Errorf("%w: incomplete token holdings", errInvalidPortfolio)
	case p.TokenHoldings.Total != len(p.TokenHoldings.Tokens):
		return fmt.Errorf("%w: total %d does not match %d tokens", errInvalidPortfolio, p.TokenHoldings.Total, len(p.TokenHoldings.Tokens))
	case p.Transactions == nil:
		return fmt.Errorf("%w: missing transactions", errInvalidPortfolio)
	}
	for _, t := range p.TokenHoldings.Tokens {
		if !isFinite(t.AmountValue) || !isFinite(t.FiatValue) || !isFinite(t.PriceValue) {
			return fmt.Errorf("%w: non-finite holding %s", errInvalidPortfolio, t.Symbol)
		}
		if t.AmountValue < 0 || t.FiatValue < 0 {
			return fmt.Errorf("%w: negative holding %s", errInvalidPortfolio, t.Symbol)
		}
	}
	return nil
}

// NormalizeTxStatus converts a status lookup.
func (n *Normalizer) NormalizeTxStatus(network entity.NetworkConfig, hash string, raw *entity.RawTxStatus, source string) entity.TxStatusResult {
	res := entity.TxStatusResult{
		Network: network.ID,
		Hash:    utils.HashOrZero(network.Kind, hash),
		Status:  entity.TxStatusPending,
		Source:  source,
	}
	if raw == nil {
		return res
	}
	res.Block = blockNumber(raw.Block)
	res.Status = txStatus(raw.Status, res.Block)
	return res
}

// NormalizeGas converts gas tiers; unparseable tiers become zero.
func (n *Normalizer) NormalizeGas(network entity.NetworkConfig, raw *entity.RawGas, source string) entity.GasTracker {
	g := entity.GasTracker{Network: network.ID, Safe: "0", Propose: "0", Fast: "0", BaseFee: "0", Source: source}
	if raw == nil {
		return g
	}
	g.Safe = utils.FormatAmount(utils.ParseAmount(raw.Safe))
	g.Propose = utils.FormatAmount(utils.ParseAmount(raw.Propose))
	g.Fast = utils.FormatAmount(utils.ParseAmount(raw.Fast))
	g.BaseFee = utils.FormatAmount(utils.ParseAmount(raw.BaseFee))
	return g
}

type holdingInput struct {
	contract  string
	symbol    string
	name      string
	decimals  int32
	raw       string
	scaled    bool
	price     decimal.Decimal
	tokenType string
	image     string
}

func (n *Normalizer) holding(network entity.NetworkConfig, in holdingInput) entity.TokenHolding {
	value := utils.ParseAmount(in.raw)
	var amount, base decimal.Decimal
	if in.scaled {
		amount, base = value, value.Shift(in.decimals).Truncate(0)
	} else {
		amount, base = utils.ScaleUnits(value, in.decimals), value.Truncate(0)
	}
	price := in.price
	if price.IsNegative() || !isFinite(price.InexactFloat64()) {
		price = decimal.Zero
	}
	if !isFinite(amount.InexactFloat64()) {
		amount, base = decimal.Zero, decimal.Zero
	}
	fiat := amount.Mul(price)
	if !isFinite(fiat.InexactFloat64()) {
		// Out of float64 range: the row is garbage, not a fortune.
		amount, base, fiat = decimal.Zero, decimal.Zero, decimal.Zero
	}

	return entity.TokenHolding{
		RawAmount:   base.String(),
		AmountValue: amount.InexactFloat64(),
		FiatValue:   fiat.InexactFloat64(),
		PriceValue:  price.InexactFloat64(),
		Address:     in.contract,
		Amount:      utils.FormatAmount(amount),
		Decimals:    in.decimals,
		FiatBalance: utils.FormatFiat(fiat),
		Image:       in.image,
		Name:        in.name,
		Price:       utils.FormatPrice(price),
		Symbol:      in.symbol,
		TokenType:   in.tokenType,
	}
}

func (n *Normalizer) transactionFee(network entity.NetworkConfig, raw entity.RawTransaction) decimal.Decimal {
	var fee decimal.Decimal
	if strings.TrimSpace(raw.Fee) != "" {
		fee = utils.ParseAmount(raw.Fee)
	} else {
		fee = utils.ParseAmount(raw.GasUsed).Mul(utils.ParseAmount(raw.GasPrice))
	}
	if raw.Scaled {
		return fee
	}
	return utils.ScaleUnits(fee, network.NativeDecimals)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func parseDecimals(s string) int32 {
	d, ok := utils.ParseDecimal(s)
	if !ok || d.IsNegative() || d.GreaterThan(decimal.NewFromInt(maxTokenDecimals)) || !d.Equal(d.Truncate(0)) {
		return defaultTokenDecimals
	}
	return int32(d.IntPart())
}

func tokenTypeTag(s string) string {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", "-")) {
	case "", "ERC20", "ERC-20", "BEP20", "BEP-20", "TOKEN":
		return entity.TokenTypeERC20
	case "ERC721", "ERC-721":
		return "ERC-721"
	case "ERC1155", "ERC-1155":
		return "ERC-1155"
	case "NATIVE":
		return entity.TokenTypeNative
	default:
		return entity.TokenTypeUnknown
	}
}

func methodTag(raw entity.RawTransaction) string {
	input := strings.TrimSpace(raw.Input)
	if input != "" && input != "0x" {
		return entity.MethodContractInteraction
	}
	method := strings.ToLower(strings.TrimSpace(raw.Method))
	if input == "" && method != "" && method != "transfer" && method != "0x" {
		return entity.MethodContractInteraction
	}
	return entity.MethodTransfer
}

func blockNumber(s string) uint64 {
	d, ok := utils.ParseDecimal(s)
	if !ok || d.IsNegative() {
		return 0
	}
	return uint64(d.IntPart())
}

func txStatus(s string, block uint64) entity.TxStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "0x1", "ok", "success", "succeeded", "confirmed":
		return entity.TxStatusSuccess
	case "0", "0x0", "error", "failed", "fail", "reverted":
		return entity.TxStatusFailed
	case "pending", "unconfirmed":
		return entity.TxStatusPending
	}
	if block > 0 {
		return entity.TxStatusSuccess
	}
	return entity.TxStatusPending
}
