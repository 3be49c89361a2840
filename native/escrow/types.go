package escrow

import (
	"fmt"
	"math/big"

	"bazaarchain/native/bank"
)

// Escrow holds a settled sale's funds pending mutual approval or dispute
// resolution. The fee split is frozen at creation so a later tier change can
// never alter an in-flight settlement. Once ResolvedAt is set the record is
// terminal.
type Escrow struct {
	ListingID       uint64
	OrderID         uint64
	Buyer           [20]byte
	Seller          [20]byte
	Token           string
	Amount          *big.Int
	SellerAmount    *big.Int
	Fee             *big.Int
	Royalty         *big.Int
	RoyaltyReceiver [20]byte
	BuyerApproved   bool
	SellerApproved  bool
	Disputed        bool
	Resolver        [20]byte
	CreatedAt       int64
	ResolvedAt      int64
}

// Resolved reports whether the escrow reached a terminal state.
func (e *Escrow) Resolved() bool {
	return e != nil && e.ResolvedAt != 0
}

// Clone returns a deep copy of the escrow record.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Amount = cloneBig(e.Amount)
	clone.SellerAmount = cloneBig(e.SellerAmount)
	clone.Fee = cloneBig(e.Fee)
	clone.Royalty = cloneBig(e.Royalty)
	return &clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// SanitizeEscrow validates and normalises the record, returning a clone with
// canonical token casing and non-nil amounts. The original is not mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	token, err := bank.NormalizeToken(clone.Token)
	if err != nil {
		return nil, err
	}
	clone.Token = token
	if clone.Amount.Sign() < 0 || clone.SellerAmount.Sign() < 0 || clone.Fee.Sign() < 0 || clone.Royalty.Sign() < 0 {
		return nil, fmt.Errorf("escrow amounts must be non-negative")
	}
	split := new(big.Int).Add(clone.SellerAmount, new(big.Int).Add(clone.Fee, clone.Royalty))
	if split.Cmp(clone.Amount) != 0 {
		return nil, fmt.Errorf("escrow split does not sum to held amount")
	}
	return clone, nil
}
