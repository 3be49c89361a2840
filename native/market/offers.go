package market

import (
	"math/big"
)

// defaultOfferTTLSecs bounds how long an offer stays acceptable when the
// buyer does not supply an expiry.
const defaultOfferTTLSecs int64 = 7 * 24 * 3600

func (e *Engine) loadOffer(id uint64) (*Offer, error) {
	offer, ok := e.state.OfferGet(id)
	if !ok {
		return nil, &Error{Kind: KindState, Err: errOfferMissing}
	}
	return offer.Clone(), nil
}

// MakeOffer locks the offered amount and records a negotiation entry against
// an active listing. Offers are addressable by their own identifier, so no
// lookup ever scans the listing set.
func (e *Engine) MakeOffer(buyer [20]byte, listingID uint64, amount *big.Int, expiresAt int64) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != ListingActive {
		return nil, errStatef("listing %d is not active", listingID)
	}
	if listing.Sale != SaleFixedPrice {
		return nil, errStatef("offers apply to fixed-price listings only")
	}
	if buyer == listing.Seller {
		return nil, errAuthorizationf("seller cannot offer on own listing")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, errValidationf("offer amount must be positive")
	}
	now := e.now()
	if expiresAt == 0 {
		expiresAt = now + defaultOfferTTLSecs
	}
	if expiresAt <= now {
		return nil, errValidationf("offer expiry must be in the future")
	}
	balance, err := e.ledger.Balance(buyer, listing.Token)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(amount) < 0 {
		return nil, errEconomicf("insufficient balance for offer")
	}
	vault, err := e.state.MarketVaultAddress(listing.Token)
	if err != nil {
		return nil, err
	}
	offerID, err := e.state.OfferNextID()
	if err != nil {
		return nil, err
	}
	offer := &Offer{
		ID:        offerID,
		ListingID: listingID,
		Buyer:     buyer,
		Amount:    new(big.Int).Set(amount),
		Token:     listing.Token,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	if err := e.state.OfferIndexAdd(listingID, offerID); err != nil {
		return nil, err
	}
	if err := e.settle(buyer, []payout{{to: vault, token: listing.Token, amount: amount}}); err != nil {
		return nil, err
	}
	e.emit(NewOfferMadeEvent(offer))
	return offer.Clone(), nil
}

// AcceptOffer settles a negotiation in the seller's favour. The listing
// flips to sold; sibling offers survive but can never be accepted afterwards
// and stay reclaimable through WithdrawExpiredOffer.
func (e *Engine) AcceptOffer(caller [20]byte, offerID uint64) (*Order, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.ensureTreasuryConfigured(); err != nil {
		return nil, err
	}
	offer, err := e.loadOffer(offerID)
	if err != nil {
		return nil, err
	}
	if offer.Accepted {
		return nil, errStatef("offer %d already accepted", offerID)
	}
	if offer.Cancelled {
		return nil, errStatef("offer %d is cancelled", offerID)
	}
	listing, err := e.loadListing(offer.ListingID)
	if err != nil {
		return nil, err
	}
	if offerCapability(caller, listing, offer) != CapabilityOwner {
		return nil, errAuthorizationf("only the seller may accept")
	}
	if listing.Status != ListingActive {
		return nil, errStatef("listing %d is not active", offer.ListingID)
	}
	if listing.Sale != SaleFixedPrice {
		return nil, errStatef("offers apply to fixed-price listings only")
	}
	now := e.now()
	if now > offer.ExpiresAt {
		return nil, errStatef("offer %d has expired", offerID)
	}
	vault, err := e.state.MarketVaultAddress(listing.Token)
	if err != nil {
		return nil, err
	}
	// Every rejectable condition resolves before the first record write so a
	// failed acceptance never leaves partial state behind.
	var escrowVault [20]byte
	if listing.Escrowed {
		if e.escrow == nil {
			return nil, errStatef("escrow settlement not configured")
		}
		if err := e.escrow.CanCreateFromSale(listing.ID); err != nil {
			return nil, err
		}
		escrowVault, err = e.escrow.VaultAddress(listing.Token)
		if err != nil {
			return nil, err
		}
	}
	breakdown := e.breakdownFor(offer.Amount, offer.Buyer, listing)
	rebate := new(big.Int).Sub(offer.Amount, breakdown.Total)

	offer.Accepted = true
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	quantity := listing.Remaining
	listing.Remaining = 0
	listing.Status = ListingSold
	if err := e.storeListing(listing); err != nil {
		return nil, err
	}
	if err := e.state.ActiveListingRemove(listing.ID); err != nil {
		return nil, err
	}
	orderID, err := e.state.OrderNextID()
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:        orderID,
		ListingID: listing.ID,
		Buyer:     offer.Buyer,
		Seller:    listing.Seller,
		Amount:    new(big.Int).Set(breakdown.Total),
		Token:     listing.Token,
		Quantity:  quantity,
		CreatedAt: now,
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}

	var legs []payout
	if rebate.Sign() > 0 {
		legs = append(legs, payout{to: offer.Buyer, token: listing.Token, amount: rebate})
	}
	if listing.Escrowed {
		if err := e.escrow.CreateFromSale(listing.ID, orderID, offer.Buyer, listing.Seller, listing.Token, breakdown.Total, breakdown.Seller, breakdown.Fee, breakdown.Royalty, listing.RoyaltyReceiver); err != nil {
			return nil, err
		}
		legs = append(legs, payout{to: escrowVault, token: listing.Token, amount: breakdown.Total})
	} else {
		legs = append(legs,
			payout{to: listing.Seller, token: listing.Token, amount: breakdown.Seller},
			payout{to: e.feeTreasury, token: listing.Token, amount: breakdown.Fee},
			payout{to: listing.RoyaltyReceiver, token: listing.Token, amount: breakdown.Royalty},
		)
	}
	if err := e.settle(vault, legs); err != nil {
		return nil, err
	}
	e.emit(NewOfferAcceptedEvent(offer))
	e.emit(NewOrderCreatedEvent(order))
	e.emit(NewListingSoldEvent(listing))
	return order.Clone(), nil
}

// CancelOffer lets the buyer reclaim a pending offer's lock.
func (e *Engine) CancelOffer(caller [20]byte, offerID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if offer.Accepted {
		return errStatef("offer %d already accepted", offerID)
	}
	if offer.Cancelled {
		return errStatef("offer %d already cancelled", offerID)
	}
	listing, err := e.loadListing(offer.ListingID)
	if err != nil {
		return err
	}
	if offerCapability(caller, listing, offer) != CapabilityParty {
		return errAuthorizationf("only the buyer may cancel")
	}
	vault, err := e.state.MarketVaultAddress(offer.Token)
	if err != nil {
		return err
	}
	offer.Cancelled = true
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if err := e.settle(vault, []payout{{to: offer.Buyer, token: offer.Token, amount: offer.Amount}}); err != nil {
		return err
	}
	e.emit(NewOfferCancelledEvent(offer))
	return nil
}

// WithdrawExpiredOffer unlocks the funds of an offer that can no longer be
// accepted, either because its expiry elapsed or because the listing left
// the active state. Anyone may trigger the refund; the funds always return
// to the buyer.
func (e *Engine) WithdrawExpiredOffer(offerID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	offer, err := e.loadOffer(offerID)
	if err != nil {
		return err
	}
	if offer.Accepted {
		return errStatef("offer %d already accepted", offerID)
	}
	if offer.Cancelled {
		return errStatef("offer %d already cancelled", offerID)
	}
	listing, err := e.loadListing(offer.ListingID)
	if err != nil {
		return err
	}
	if e.now() <= offer.ExpiresAt && listing.Status == ListingActive {
		return errStatef("offer %d is still live", offerID)
	}
	vault, err := e.state.MarketVaultAddress(offer.Token)
	if err != nil {
		return err
	}
	offer.Cancelled = true
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	if err := e.settle(vault, []payout{{to: offer.Buyer, token: offer.Token, amount: offer.Amount}}); err != nil {
		return err
	}
	e.emit(NewOfferWithdrawnEvent(offer))
	return nil
}
