package entity

// FetchParams are the inputs a source adapter needs for one operation.
type FetchParams struct {
	Address string
	Hash    string
	Page    int
	Show    int
}

// RawPayload is what a source adapter hands back: provider values decoded into a common
// envelope but not yet parsed, validated or defaulted. Only the field matching the
// operation is set.
type RawPayload struct {
	Source       string
	Operation    Operation
	Balance      *RawBalance
	Tokens       []RawToken
	Transactions []RawTransaction
	TxStatus     *RawTxStatus
	Gas          *RawGas
}

// RawBalance is a native balance. Scaled marks amounts already expressed in whole units.
type RawBalance struct {
	Amount string
	Scaled bool
}

// RawToken is one token row as a provider reported it.
type RawToken struct {
	Contract string
	Symbol   string
	Name     string
	Decimals string
	Balance  string
	Scaled   bool
	Type     string
	Image    string
	// Price is a unit price some providers attach; used only when no local price is known.
	Price string
}

// RawTransaction is one transaction as a provider reported it.
type RawTransaction struct {
	Hash      string
	Block     string
	Timestamp string
	From      string
	To        string
	Value     string
	Scaled    bool
	Fee       string
	GasUsed   string
	GasPrice  string
	Input     string
	Method    string
	Status    string
}

// RawTxStatus is a status lookup result. Found is false when the provider does not know the hash.
type RawTxStatus struct {
	Found  bool
	Status string
	Block  string
}

// RawGas holds provider gas tiers in gwei.
type RawGas struct {
	Safe    string
	Propose string
	Fast    string
	BaseFee string
}

// EmptyPayload returns the default payload for op, used when every candidate failed.
func EmptyPayload(op Operation) RawPayload {
	p := RawPayload{Operation: op}
	switch op {
	case OpBalance:
		p.Balance = &RawBalance{Amount: "0"}
	case OpTokens:
		p.Tokens = []RawToken{}
	case OpTransactions:
		p.Transactions = []RawTransaction{}
	case OpTxStatus:
		p.TxStatus = &RawTxStatus{}
	case OpGasTracker:
		p.Gas = &RawGas{Safe: "0", Propose: "0", Fast: "0", BaseFee: "0"}
	}
	return p
}

// IsEmpty reports whether the payload carries no usable items for its operation.
func (p RawPayload) IsEmpty() bool {
	switch p.Operation {
	case OpBalance:
		return p.Balance == nil
	case OpTokens:
		return len(p.Tokens) == 0
	case OpTransactions:
		return len(p.Transactions) == 0
	case OpTxStatus:
		return p.TxStatus == nil || !p.TxStatus.Found
	case OpGasTracker:
		return p.Gas == nil
	}
	return true
}
