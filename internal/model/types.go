package model

// AccountCredential holds the API key material for one exchange account.
// Owned by the credential store; the relay only ever reads it.
type AccountCredential struct {
	Name      string // Unique account name
	APIKey    string // Exchange API key
	APISecret string // Exchange API secret (HMAC signing key)
}

// Tick is one normalized price observation for a symbol under an
// account's feed. Produced by the upstream feed, consumed once by
// fan-out, never persisted.
type Tick struct {
	// Timestamp is passed through from the upstream record untyped.
	// BitMEX sends ISO-8601 strings but the relay does not depend on that.
	Timestamp any     `json:"timestamp"`
	Account   string  `json:"account"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
}

// Order side values.
const (
	SideBuy  = "Buy"
	SideSell = "Sell"
)

// Order is a local record of an order placed through the exchange proxy.
type Order struct {
	OrderID   string  // Exchange-assigned order ID
	Symbol    string  // Instrument symbol (e.g. "XBTUSD")
	Volume    int64   // Order quantity in contracts
	Timestamp string  // Exchange timestamp (ISO-8601, passthrough)
	Side      string  // SideBuy or SideSell
	Price     float64 // Limit price
	Account   string  // Owning account name
}
