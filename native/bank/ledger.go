package bank

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"bazaarchain/core/types"
)

var (
	errNilStore            = errors.New("bank: account store not configured")
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
)

// AccountStore is the narrow state surface the ledger needs to move value.
type AccountStore interface {
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// NormalizeToken ensures the provided token symbol matches a supported value
// ("BZR" or "LBZ") and returns the canonical uppercase form.
func NormalizeToken(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	switch trimmed {
	case "BZR", "LBZ":
		return trimmed, nil
	default:
		return "", fmt.Errorf("bank: unsupported token: %s", symbol)
	}
}

// Ledger is the payment adapter used by the marketplace engines. It moves
// balances between accounts and holds no state of its own.
type Ledger struct {
	store AccountStore
}

// NewLedger constructs a ledger over the supplied account store.
func NewLedger(store AccountStore) *Ledger {
	return &Ledger{store: store}
}

// Transfer moves amount of token from one account to another. A zero amount
// is a no-op; negative amounts and insufficient balances are rejected with
// no state change.
func (l *Ledger) Transfer(from, to [20]byte, token string, amount *big.Int) error {
	if l == nil || l.store == nil {
		return errNilStore
	}
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("bank: negative transfer amount")
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return err
	}
	fromAcc, err := l.store.GetAccount(from[:])
	if err != nil {
		return err
	}
	toAcc, err := l.store.GetAccount(to[:])
	if err != nil {
		return err
	}
	fromAcc = types.EnsureBalances(fromAcc)
	toAcc = types.EnsureBalances(toAcc)
	switch normalized {
	case "BZR":
		if fromAcc.BalanceBZR.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		fromAcc.BalanceBZR = new(big.Int).Sub(fromAcc.BalanceBZR, amount)
		toAcc.BalanceBZR = new(big.Int).Add(toAcc.BalanceBZR, amount)
	case "LBZ":
		if fromAcc.BalanceLBZ.Cmp(amount) < 0 {
			return ErrInsufficientBalance
		}
		fromAcc.BalanceLBZ = new(big.Int).Sub(fromAcc.BalanceLBZ, amount)
		toAcc.BalanceLBZ = new(big.Int).Add(toAcc.BalanceLBZ, amount)
	}
	if err := l.store.PutAccount(from[:], fromAcc); err != nil {
		return err
	}
	return l.store.PutAccount(to[:], toAcc)
}

// Balance reports the current balance of token held by addr.
func (l *Ledger) Balance(addr [20]byte, token string) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, errNilStore
	}
	normalized, err := NormalizeToken(token)
	if err != nil {
		return nil, err
	}
	acc, err := l.store.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	acc = types.EnsureBalances(acc)
	if normalized == "BZR" {
		return new(big.Int).Set(acc.BalanceBZR), nil
	}
	return new(big.Int).Set(acc.BalanceLBZ), nil
}
