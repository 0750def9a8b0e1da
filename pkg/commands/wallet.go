package commands

// CreateWallet registers a named wallet.
type CreateWallet struct {
	Name     string
	Owner    string
	Kind     string
	Currency string
	Note     string
	Operator string
}
