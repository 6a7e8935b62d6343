package restapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	"github.com/gin-gonic/gin"
)

// maxBatchAccounts bounds a single fan-out request.
const maxBatchAccounts = 200

// ContractVerification answers contract verification lookups.
type ContractVerification interface {
	IsVerified(ctx context.Context, id entity.NetworkID, contract string) (entity.VerificationRecord, error)
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// BatchRequest is the body of the fan-out endpoints.
type BatchRequest struct {
	Accounts []entity.AccountRef `json:"accounts" binding:"required,dive"`
}

// BatchNotFoundResponse is returned when every item of a batch failed.
type BatchNotFoundResponse struct {
	ErrorResponse
	Exceptions []entity.BatchException `json:"exceptions"`
}

// NetworkSummary is the public description of an enabled network.
type NetworkSummary struct {
	ID             entity.NetworkID   `json:"id"`
	Name           string             `json:"name"`
	ChainID        uint64             `json:"chainId,omitempty"`
	Kind           entity.ChainKind   `json:"kind"`
	NativeSymbol   string             `json:"nativeSymbol"`
	NativeDecimals int32              `json:"nativeDecimals"`
	LogoURL        string             `json:"logoUrl"`
	FiatSymbol     string             `json:"fiatSymbol"`
	Operations     []entity.Operation `json:"operations"`
}

// PortfolioHandler serves the per-network and fan-out endpoints.
type PortfolioHandler struct {
	registry     port.AggregatorRegistry
	fanOut       port.PortfolioFanOut
	verification ContractVerification
	logger       port.Logger
}

// NewPortfolioHandler creates a PortfolioHandler. verification may be nil.
func NewPortfolioHandler(registry port.AggregatorRegistry, fanOut port.PortfolioFanOut, verification ContractVerification, logger port.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		registry:     registry,
		fanOut:       fanOut,
		verification: verification,
		logger:       logger,
	}
}

// ListNetworks handles GET /networks.
func (h *PortfolioHandler) ListNetworks(c *gin.Context) {
	networks := h.registry.Networks()
	out := make([]NetworkSummary, 0, len(networks))
	for _, n := range networks {
		ops := make([]entity.Operation, 0, len(entity.AllOperations))
		for _, op := range entity.AllOperations {
			if len(n.Sources[op]) > 0 {
				ops = append(ops, op)
			}
		}
		out = append(out, NetworkSummary{
			ID:             n.ID,
			Name:           n.Name,
			ChainID:        n.ChainID,
			Kind:           n.Kind,
			NativeSymbol:   n.NativeSymbol,
			NativeDecimals: n.NativeDecimals,
			LogoURL:        n.LogoURL,
			FiatSymbol:     n.FiatSymbol,
			Operations:     ops,
		})
	}
	c.JSON(http.StatusOK, gin.H{"networks": out})
}

// GetPortfolio handles GET /networks/:network/addresses/:address. Upstream failures
// still answer 200 with the degraded portfolio.
func (h *PortfolioHandler) GetPortfolio(c *gin.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	req, ok := portfolioRequest(c)
	if !ok {
		return
	}
	portfolio, err := agg.GetPortfolio(c.Request.Context(), req)
	if err != nil {
		if !errors.Is(err, entity.ErrAllSourcesFailed) {
			h.writeError(c, err, "address_not_found")
			return
		}
		h.logger.Warn("Serving degraded portfolio", "network", agg.Network().ID, "address", req.Address, "error", err)
	}
	c.JSON(http.StatusOK, portfolio)
}

// GetTransactions handles GET /networks/:network/addresses/:address/transactions.
func (h *PortfolioHandler) GetTransactions(c *gin.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	req, ok := portfolioRequest(c)
	if !ok {
		return
	}
	txs, err := agg.GetTransactions(c.Request.Context(), req)
	if err != nil && !errors.Is(err, entity.ErrAllSourcesFailed) {
		h.writeError(c, err, "address_not_found")
		return
	}
	c.JSON(http.StatusOK, entity.AccountTransactions{
		Address:      req.Address,
		Network:      string(agg.Network().ID),
		Transactions: txs,
	})
}

// GetTransactionStatus handles GET /networks/:network/tx/:hash.
func (h *PortfolioHandler) GetTransactionStatus(c *gin.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	status, err := agg.GetTransactionStatus(c.Request.Context(), c.Param("hash"))
	if err != nil {
		h.writeError(c, err, "transaction_not_found")
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetGasTracker handles GET /networks/:network/gas.
func (h *PortfolioHandler) GetGasTracker(c *gin.Context) {
	agg, ok := h.aggregator(c)
	if !ok {
		return
	}
	gas, err := agg.GetGasTracker(c.Request.Context())
	if err != nil && !errors.Is(err, entity.ErrAllSourcesFailed) {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, gas)
}

// GetContractVerification handles GET /networks/:network/contracts/:address/verification.
func (h *PortfolioHandler) GetContractVerification(c *gin.Context) {
	id, err := entity.ParseNetworkID(c.Param("network"))
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	if h.verification == nil {
		h.writeError(c, entity.ErrUnsupportedOperation, "")
		return
	}
	record, err := h.verification.IsVerified(c.Request.Context(), id, c.Param("address"))
	if err != nil {
		h.writeError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetBalances handles POST /balances.
func (h *PortfolioHandler) GetBalances(c *gin.Context) {
	req, ok := h.batchRequest(c)
	if !ok {
		return
	}
	batch, err := h.fanOut.GetBalances(c.Request.Context(), req.Accounts)
	if err != nil {
		h.writeBatchError(c, err, batch.Exceptions)
		return
	}
	c.JSON(http.StatusOK, batch)
}

// GetTransactionHistory handles POST /transactions.
func (h *PortfolioHandler) GetTransactionHistory(c *gin.Context) {
	req, ok := h.batchRequest(c)
	if !ok {
		return
	}
	batch, err := h.fanOut.GetTransactionHistory(c.Request.Context(), req.Accounts)
	if err != nil {
		h.writeBatchError(c, err, batch.Exceptions)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *PortfolioHandler) aggregator(c *gin.Context) (port.NetworkAggregator, bool) {
	id, err := entity.ParseNetworkID(c.Param("network"))
	if err != nil {
		h.writeError(c, err, "")
		return nil, false
	}
	agg, ok := h.registry.Aggregator(id)
	if !ok {
		h.writeError(c, entity.ErrUnsupportedNetwork, "")
		return nil, false
	}
	return agg, true
}

func (h *PortfolioHandler) batchRequest(c *gin.Context) (BatchRequest, bool) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return req, false
	}
	if len(req.Accounts) == 0 || len(req.Accounts) > maxBatchAccounts {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "accounts must contain between 1 and " + strconv.Itoa(maxBatchAccounts) + " entries",
		})
		return req, false
	}
	return req, true
}

func portfolioRequest(c *gin.Context) (entity.PortfolioRequest, bool) {
	req := entity.PortfolioRequest{Address: c.Param("address")}
	for name, dst := range map[string]*int{"page": &req.Page, "show": &req.Show} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: name + " must be a positive integer"})
			return req, false
		}
		*dst = v
	}
	return req, true
}

func (h *PortfolioHandler) writeBatchError(c *gin.Context, err error, exceptions []entity.BatchException) {
	if errors.Is(err, entity.ErrNotFound) {
		if exceptions == nil {
			exceptions = []entity.BatchException{}
		}
		c.JSON(http.StatusNotFound, BatchNotFoundResponse{
			ErrorResponse: ErrorResponse{Error: "address_not_found", Message: err.Error()},
			Exceptions:    exceptions,
		})
		return
	}
	h.writeError(c, err, "")
}

// writeError maps the error taxonomy onto HTTP statuses. notFoundCode names the
// 404 error code for ErrNotFound.
func (h *PortfolioHandler) writeError(c *gin.Context, err error, notFoundCode string) {
	status, code := http.StatusBadGateway, "upstream_unavailable"
	switch {
	case errors.Is(err, entity.ErrValidation):
		status, code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, entity.ErrUnsupportedNetwork):
		status, code = http.StatusNotFound, "unsupported_network"
	case errors.Is(err, entity.ErrUnsupportedOperation):
		status, code = http.StatusNotFound, "unsupported_operation"
	case errors.Is(err, entity.ErrNotFound):
		status, code = http.StatusNotFound, notFoundCode
		if code == "" {
			code = "not_found"
		}
	case errors.Is(err, context.Canceled):
		status, code = 499, "client_closed_request"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
