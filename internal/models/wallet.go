package models

// WalletBalance is a snapshot of the exchange wallet for the settlement
// currency.
type WalletBalance struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
	Currency  string  `json:"currency"`
}
