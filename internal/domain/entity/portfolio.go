package entity

// Address classifications carried in AddressPortfolio.Type.
const (
	PortfolioTypeAccount = "system_account"
	PortfolioTypeError   = "error"
)

// Token type tags.
const (
	TokenTypeNative  = "native"
	TokenTypeERC20   = "ERC-20"
	TokenTypeUnknown = "unknown"
)

// ZeroAddress is the EVM sentinel used in place of malformed addresses.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// ZeroHash is the EVM sentinel used in place of malformed transaction hashes.
const ZeroHash = "0x0000000000000000000000000000000000000000000000000000000000000000"

// AddressPortfolio is the canonical per-network view of one address.
type AddressPortfolio struct {
	Address       string        `json:"address"`
	Balance       string        `json:"balance"`
	FiatBalance   float64       `json:"fiatBalance"`
	Type          string        `json:"type"`
	Account       Account       `json:"account"`
	TokenHoldings TokenHoldings `json:"tokenHoldings"`
	Transactions  []Transaction `json:"transactions"`
}

// Account describes the native asset of the portfolio.
type Account struct {
	Asset       string `json:"asset"`
	FiatBalance string `json:"fiatBalance"`
	Price       string `json:"price"`
}

// TokenHoldings wraps the token list; Total always equals len(Tokens).
type TokenHoldings struct {
	Total   int            `json:"total"`
	Balance string         `json:"balance"`
	Tokens  []TokenHolding `json:"tokens"`
}

// TokenHolding is one row of the token list. Underscored fields are the numeric values
// behind the display strings.
type TokenHolding struct {
	RawAmount   string  `json:"-"`
	AmountValue float64 `json:"_amount"`
	FiatValue   float64 `json:"_fiatBalance"`
	PriceValue  float64 `json:"_price"`
	Address     string  `json:"address"`
	Amount      string  `json:"amount"`
	Decimals    int32   `json:"decimals"`
	FiatBalance string  `json:"fiatBalance"`
	Image       string  `json:"image"`
	Name        string  `json:"name"`
	Price       string  `json:"price"`
	Symbol      string  `json:"symbol"`
	TokenType   string  `json:"tokenType"`
}

// PortfolioRequest is the per-network request shape.
type PortfolioRequest struct {
	Address string `json:"address"`
	Page    int    `json:"page,omitempty"`
	Show    int    `json:"show,omitempty"`
}
