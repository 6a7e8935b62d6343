package entity

// Transaction directions.
const (
	TrafficIn    = "IN"
	TrafficOut   = "OUT"
	TrafficError = "ERROR"
)

// Method classifications.
const (
	MethodTransfer            = "Transfer"
	MethodContractInteraction = "Contract Interaction"
	MethodError               = "Error"
)

// TxStatus is the execution status of a transaction.
type TxStatus string

const (
	TxStatusSuccess TxStatus = "Success"
	TxStatusFailed  TxStatus = "Failed"
	TxStatusPending TxStatus = "Pending"
)

// Transaction is one canonical transaction row.
type Transaction struct {
	Hash       string   `json:"hash"`
	Method     string   `json:"method"`
	Block      uint64   `json:"block"`
	Age        string   `json:"age"`
	Date       string   `json:"date"`
	From       string   `json:"from"`
	Traffic    string   `json:"traffic"`
	To         string   `json:"to"`
	FiatAmount string   `json:"fiatAmount"`
	Amount     string   `json:"amount"`
	Asset      string   `json:"asset"`
	TxnFee     string   `json:"txnFee"`
	Status     TxStatus `json:"-"`
}

// TxStatusResult answers a single transaction status lookup.
type TxStatusResult struct {
	Network NetworkID `json:"network"`
	Hash    string    `json:"hash"`
	Status  TxStatus  `json:"status"`
	Block   uint64    `json:"block"`
	Source  string    `json:"source"`
}

// GasTracker holds gas price tiers in gwei.
type GasTracker struct {
	Network NetworkID `json:"network"`
	Safe    string    `json:"safe"`
	Propose string    `json:"propose"`
	Fast    string    `json:"fast"`
	BaseFee string    `json:"baseFee"`
	Source  string    `json:"source"`
}
