package entity

// TokenInfo describes a known token contract. Token lists loaded from data/tokens feed
// the RPC adapter, which can only query balances of contracts it already knows about.
type TokenInfo struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}
