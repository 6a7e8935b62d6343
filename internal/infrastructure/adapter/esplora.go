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

	"go.uber.org/zap"
)

type esploraStats struct {
	FundedTxoSum int64 `json:"funded_txo_sum"`
	SpentTxoSum  int64 `json:"spent_txo_sum"`
}

type esploraAddress struct {
	ChainStats   esploraStats `json:"chain_stats"`
	MempoolStats esploraStats `json:"mempool_stats"`
}

type esploraStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight uint64 `json:"block_height"`
	BlockTime   int64  `json:"block_time"`
}

type esploraOutput struct {
	Address string `json:"scriptpubkey_address"`
	Value   int64  `json:"value"`
}

type esploraTx struct {
	TxID   string        `json:"txid"`
	Fee    int64         `json:"fee"`
	Status esploraStatus `json:"status"`
	Vin    []struct {
		Prevout *esploraOutput `json:"prevout"`
	} `json:"vin"`
	Vout []esploraOutput `json:"vout"`
}

// EsploraAdapter reads a Blockstream Esplora compatible API (blockstream.info,
// mempool.space) for UTXO networks. Amounts are in satoshis.
type EsploraAdapter struct {
	http    *httpclient.Client
	name    string
	baseURL string
	logger  *zap.Logger
}

// NewEsploraAdapter creates an adapter for one Esplora base URL. name tells
// instances apart in diagnostics, e.g. "esplora:mempool.space".
func NewEsploraAdapter(name, baseURL string, http *httpclient.Client, logger *zap.Logger) *EsploraAdapter {
	return &EsploraAdapter{
		http:    http,
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("EsploraAdapter").With(zap.String("source", name)),
	}
}

// EsploraSourceName derives an adapter name from its base URL host.
func EsploraSourceName(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return entity.SourceEsplora
	}
	return entity.SourceEsplora + ":" + u.Host
}

func (a *EsploraAdapter) Name() string { return a.name }

func (a *EsploraAdapter) Supports(op entity.Operation) bool {
	switch op {
	case entity.OpBalance, entity.OpTransactions, entity.OpTxStatus:
		return true
	}
	return false
}

func (a *EsploraAdapter) Fetch(ctx context.Context, op entity.Operation, params entity.FetchParams) (entity.RawPayload, error) {
	switch op {
	case entity.OpBalance:
		return a.balance(ctx, params.Address)
	case entity.OpTransactions:
		return a.transactions(ctx, params)
	case entity.OpTxStatus:
		return a.txStatus(ctx, params.Hash)
	}
	return entity.RawPayload{}, fmt.Errorf("%w: esplora cannot serve %s", entity.ErrUnsupportedOperation, op)
}

// balance reports the confirmed balance; mempool deltas are not counted.
func (a *EsploraAdapter) balance(ctx context.Context, address string) (entity.RawPayload, error) {
	var addr esploraAddress
	if err := a.http.GetJSON(ctx, a.baseURL+"/address/"+url.PathEscape(address), &addr); err != nil {
		return entity.RawPayload{}, err
	}
	sats := addr.ChainStats.FundedTxoSum - addr.ChainStats.SpentTxoSum
	if sats < 0 {
		sats = 0
	}
	return entity.RawPayload{Balance: &entity.RawBalance{Amount: strconv.FormatInt(sats, 10)}}, nil
}

// transactions returns the newest page of the address history. Esplora pages by
// last seen txid in chunks of 25, so only the first page is served.
func (a *EsploraAdapter) transactions(ctx context.Context, params entity.FetchParams) (entity.RawPayload, error) {
	var txs []esploraTx
	if err := a.http.GetJSON(ctx, a.baseURL+"/address/"+url.PathEscape(params.Address)+"/txs", &txs); err != nil {
		return entity.RawPayload{}, err
	}
	if params.Show > 0 && len(txs) > params.Show {
		txs = txs[:params.Show]
	}

	out := entity.RawPayload{Transactions: make([]entity.RawTransaction, 0, len(txs))}
	for _, tx := range txs {
		var received, spent int64
		var counterpartyIn, counterpartyOut string
		for _, in := range tx.Vin {
			if in.Prevout == nil {
				continue
			}
			if in.Prevout.Address == params.Address {
				spent += in.Prevout.Value
			} else if counterpartyIn == "" {
				counterpartyIn = in.Prevout.Address
			}
		}
		for _, o := range tx.Vout {
			if o.Address == params.Address {
				received += o.Value
			} else if counterpartyOut == "" {
				counterpartyOut = o.Address
			}
		}

		raw := entity.RawTransaction{
			Hash:  tx.TxID,
			Fee:   strconv.FormatInt(tx.Fee, 10),
			Input: "0x",
		}
		if spent > 0 {
			raw.From, raw.To = params.Address, counterpartyOut
			raw.Value = strconv.FormatInt(max(spent-received-tx.Fee, 0), 10)
		} else {
			raw.From, raw.To = counterpartyIn, params.Address
			raw.Value = strconv.FormatInt(received, 10)
		}
		if tx.Status.Confirmed {
			raw.Block = strconv.FormatUint(tx.Status.BlockHeight, 10)
			raw.Timestamp = strconv.FormatInt(tx.Status.BlockTime, 10)
			raw.Status = "confirmed"
		} else {
			raw.Status = "pending"
		}
		out.Transactions = append(out.Transactions, raw)
	}
	return out, nil
}

func (a *EsploraAdapter) txStatus(ctx context.Context, txid string) (entity.RawPayload, error) {
	var st esploraStatus
	err := a.http.GetJSON(ctx, a.baseURL+"/tx/"+url.PathEscape(txid)+"/status", &st)
	if httpclient.IsStatus(err, http.StatusNotFound) || httpclient.IsStatus(err, http.StatusBadRequest) {
		return entity.RawPayload{TxStatus: &entity.RawTxStatus{Found: false}}, nil
	}
	if err != nil {
		return entity.RawPayload{}, err
	}
	res := &entity.RawTxStatus{Found: true, Status: "pending"}
	if st.Confirmed {
		res.Status = "confirmed"
		res.Block = strconv.FormatUint(st.BlockHeight, 10)
	}
	return entity.RawPayload{TxStatus: res}, nil
}
