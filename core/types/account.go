package types

import "math/big"

// Account is the ledger-side record for a single address. Balances are held
// per asset: BZR is the native settlement coin, LBZ the platform reward
// asset.
type Account struct {
	Nonce      uint64   `json:"nonce"`
	BalanceBZR *big.Int `json:"balanceBZR"`
	BalanceLBZ *big.Int `json:"balanceLBZ"`
	Stake      *big.Int `json:"stake"`
	Username   string   `json:"username"`
}

// EnsureBalances replaces nil balance fields with zero values so callers can
// use the account without nil checks. A nil account yields a fresh zeroed
// record.
func EnsureBalances(acc *Account) *Account {
	if acc == nil {
		return &Account{BalanceBZR: big.NewInt(0), BalanceLBZ: big.NewInt(0), Stake: big.NewInt(0)}
	}
	if acc.BalanceBZR == nil {
		acc.BalanceBZR = big.NewInt(0)
	}
	if acc.BalanceLBZ == nil {
		acc.BalanceLBZ = big.NewInt(0)
	}
	if acc.Stake == nil {
		acc.Stake = big.NewInt(0)
	}
	return acc
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return EnsureBalances(nil)
	}
	clone := &Account{
		Nonce:      a.Nonce,
		BalanceBZR: big.NewInt(0),
		BalanceLBZ: big.NewInt(0),
		Stake:      big.NewInt(0),
		Username:   a.Username,
	}
	if a.BalanceBZR != nil {
		clone.BalanceBZR = new(big.Int).Set(a.BalanceBZR)
	}
	if a.BalanceLBZ != nil {
		clone.BalanceLBZ = new(big.Int).Set(a.BalanceLBZ)
	}
	if a.Stake != nil {
		clone.Stake = new(big.Int).Set(a.Stake)
	}
	return clone
}
