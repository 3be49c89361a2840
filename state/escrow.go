package state

import (
	"math/big"

	"bazaarchain/native/escrow"
)

type storedEscrow struct {
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
	CreatedAt       uint64
	ResolvedAt      uint64
}

// EscrowPut persists an escrow record keyed by its listing.
func (m *Manager) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return m.putRecord(kvKey(escrowPrefix, idBytes(sanitized.ListingID)), &storedEscrow{
		ListingID:       sanitized.ListingID,
		OrderID:         sanitized.OrderID,
		Buyer:           sanitized.Buyer,
		Seller:          sanitized.Seller,
		Token:           sanitized.Token,
		Amount:          toBig(sanitized.Amount),
		SellerAmount:    toBig(sanitized.SellerAmount),
		Fee:             toBig(sanitized.Fee),
		Royalty:         toBig(sanitized.Royalty),
		RoyaltyReceiver: sanitized.RoyaltyReceiver,
		BuyerApproved:   sanitized.BuyerApproved,
		SellerApproved:  sanitized.SellerApproved,
		Disputed:        sanitized.Disputed,
		Resolver:        sanitized.Resolver,
		CreatedAt:       uint64(sanitized.CreatedAt),
		ResolvedAt:      uint64(sanitized.ResolvedAt),
	})
}

// EscrowGet loads the escrow attached to a listing.
func (m *Manager) EscrowGet(listingID uint64) (*escrow.Escrow, bool) {
	stored := new(storedEscrow)
	ok, err := m.getRecord(kvKey(escrowPrefix, idBytes(listingID)), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &escrow.Escrow{
		ListingID:       stored.ListingID,
		OrderID:         stored.OrderID,
		Buyer:           stored.Buyer,
		Seller:          stored.Seller,
		Token:           stored.Token,
		Amount:          fromBig(stored.Amount),
		SellerAmount:    fromBig(stored.SellerAmount),
		Fee:             fromBig(stored.Fee),
		Royalty:         fromBig(stored.Royalty),
		RoyaltyReceiver: stored.RoyaltyReceiver,
		BuyerApproved:   stored.BuyerApproved,
		SellerApproved:  stored.SellerApproved,
		Disputed:        stored.Disputed,
		Resolver:        stored.Resolver,
		CreatedAt:       int64(stored.CreatedAt),
		ResolvedAt:      int64(stored.ResolvedAt),
	}, true
}

// EscrowVaultAddress returns the custody address holding escrowed settlement
// funds for a token.
func (m *Manager) EscrowVaultAddress(token string) ([20]byte, error) {
	return moduleVault("escrow", token), nil
}
