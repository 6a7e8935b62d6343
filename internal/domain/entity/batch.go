package entity

// AccountRef is one (address, network) pair of a fan-out request.
type AccountRef struct {
	Address string `json:"address" binding:"required"`
	Network string `json:"network" binding:"required"`
}

// BatchException reports why one item of a fan-out failed.
type BatchException struct {
	Network string `json:"network"`
	Address string `json:"address"`
	Message string `json:"message"`
}

// BalanceBatch is the fan-out result for portfolios.
type BalanceBatch struct {
	Results    []AddressPortfolio `json:"results"`
	Exceptions []BatchException   `json:"exceptions"`
}

// AccountTransactions is the transaction history of one account on one network.
type AccountTransactions struct {
	Address      string        `json:"address"`
	Network      string        `json:"network"`
	Transactions []Transaction `json:"transactions"`
}

// TransactionBatch is the fan-out result for transaction histories.
type TransactionBatch struct {
	Results    []AccountTransactions `json:"results"`
	Exceptions []BatchException      `json:"exceptions"`
}
