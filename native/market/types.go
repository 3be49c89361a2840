package market

import (
	"fmt"
	"math/big"

	"bazaarchain/native/bank"
)

// ListingStatus represents the lifecycle states of a listing.
type ListingStatus uint8

const (
	ListingActive ListingStatus = iota + 1
	ListingSold
	ListingCancelled
	ListingExpired
)

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingSold, ListingCancelled, ListingExpired:
		return true
	default:
		return false
	}
}

// SaleKind distinguishes fixed-price sales from auctions.
type SaleKind uint8

const (
	SaleFixedPrice SaleKind = iota + 1
	SaleAuction
)

// Valid reports whether the sale kind is supported.
func (k SaleKind) Valid() bool {
	return k == SaleFixedPrice || k == SaleAuction
}

// ItemKind classifies what a listing sells.
type ItemKind uint8

const (
	ItemPhysical ItemKind = iota + 1
	ItemDigital
	ItemUniqueAsset
	ItemService
)

// Valid reports whether the item kind is supported.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemPhysical, ItemDigital, ItemUniqueAsset, ItemService:
		return true
	default:
		return false
	}
}

// Listing captures a sell-side offer of an asset at a price or via auction.
// The registry is the exclusive owner of every field except the highest-bid
// pair, which the auction flow mutates.
type Listing struct {
	ID              uint64
	Seller          [20]byte
	Token           string
	Price           *big.Int
	Remaining       uint64
	Kind            ItemKind
	Sale            SaleKind
	Status          ListingStatus
	StartTime       int64
	EndTime         int64
	RevealWindow    int64
	HighestBid      *big.Int
	HighestBidder   [20]byte
	Reserve         *big.Int
	MinIncrementBps uint32
	RoyaltyBps      uint32
	RoyaltyReceiver [20]byte
	Escrowed        bool
	MetaHash        [32]byte
	CreatedAt       int64
}

// RevealDeadline returns the instant after which reveals are no longer
// accepted. Anti-sniping extensions move it together with the end time.
func (l *Listing) RevealDeadline() int64 {
	if l == nil {
		return 0
	}
	return l.EndTime + l.RevealWindow
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if l.HighestBid != nil {
		clone.HighestBid = new(big.Int).Set(l.HighestBid)
	} else {
		clone.HighestBid = big.NewInt(0)
	}
	if l.Reserve != nil {
		clone.Reserve = new(big.Int).Set(l.Reserve)
	} else {
		clone.Reserve = big.NewInt(0)
	}
	return &clone
}

// SanitizeListing validates and normalises the supplied listing, returning a
// cloned instance with canonical token casing and non-nil amount fields. The
// original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	token, err := bank.NormalizeToken(clone.Token)
	if err != nil {
		return nil, err
	}
	clone.Token = token
	if clone.Price.Sign() < 0 {
		return nil, fmt.Errorf("listing price must be non-negative")
	}
	if clone.Reserve.Sign() < 0 {
		return nil, fmt.Errorf("listing reserve must be non-negative")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("invalid listing status: %d", clone.Status)
	}
	if !clone.Sale.Valid() {
		return nil, fmt.Errorf("invalid sale kind: %d", clone.Sale)
	}
	if !clone.Kind.Valid() {
		return nil, fmt.Errorf("invalid item kind: %d", clone.Kind)
	}
	if clone.RoyaltyBps > 10_000 || clone.MinIncrementBps > 10_000 {
		return nil, fmt.Errorf("listing bps out of range")
	}
	return clone, nil
}

// BidCommitment records a sealed bid: the commitment hash plus the deposit
// locked in the market vault. A commitment is consumed by at most one
// successful reveal.
type BidCommitment struct {
	ListingID uint64
	Bidder    [20]byte
	Hash      [32]byte
	Deposit   *big.Int
	Revealed  bool
	Amount    *big.Int
	CreatedAt int64
}

// Clone returns a deep copy of the commitment.
func (b *BidCommitment) Clone() *BidCommitment {
	if b == nil {
		return nil
	}
	clone := *b
	if b.Deposit != nil {
		clone.Deposit = new(big.Int).Set(b.Deposit)
	} else {
		clone.Deposit = big.NewInt(0)
	}
	if b.Amount != nil {
		clone.Amount = new(big.Int).Set(b.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Offer is a bilateral negotiation entry on top of an active listing. Once
// accepted it is immutable.
type Offer struct {
	ID        uint64
	ListingID uint64
	Buyer     [20]byte
	Amount    *big.Int
	Token     string
	CreatedAt int64
	ExpiresAt int64
	Accepted  bool
	Cancelled bool
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Amount != nil {
		clone.Amount = new(big.Int).Set(o.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// Order is the immutable receipt created exactly once per successful
// purchase, auction settlement or offer acceptance.
type Order struct {
	ID        uint64
	ListingID uint64
	Buyer     [20]byte
	Seller    [20]byte
	Amount    *big.Int
	Token     string
	Quantity  uint64
	CreatedAt int64
}

// Clone returns a deep copy of the order.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Amount != nil {
		clone.Amount = new(big.Int).Set(o.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}
