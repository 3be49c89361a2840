package market

import (
	"math/big"
)

const (
	// minRevealWindowSecs is the floor for the reveal window.
	minRevealWindowSecs int64 = 3600
	// revealWindowDivisor sizes the reveal window from the auction duration.
	revealWindowDivisor int64 = 5
)

// CreateListingParams carries the caller-supplied listing definition.
type CreateListingParams struct {
	Seller          [20]byte
	Token           string
	Price           *big.Int
	Quantity        uint64
	Kind            ItemKind
	Sale            SaleKind
	StartTime       int64
	EndTime         int64
	Reserve         *big.Int
	MinIncrementBps uint32
	RoyaltyBps      uint32
	RoyaltyReceiver [20]byte
	Escrowed        bool
	MetaHash        [32]byte
}

// CreateListing validates the definition, allocates the listing identifier
// from the state counter and persists the record. The caller must hold the
// configured loyalty floor.
func (e *Engine) CreateListing(params CreateListingParams) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.tierOf(params.Seller) < e.minListingTier {
		return nil, errAuthorizationf("seller below loyalty floor")
	}
	if params.Price == nil || params.Price.Sign() <= 0 {
		return nil, errValidationf("price must be positive")
	}
	if params.Quantity == 0 {
		return nil, errValidationf("quantity must be positive")
	}
	if params.Kind == ItemUniqueAsset && params.Quantity != 1 {
		return nil, errValidationf("unique assets list a single unit")
	}
	if !params.Kind.Valid() {
		return nil, errValidationf("invalid item kind")
	}
	if !params.Sale.Valid() {
		return nil, errValidationf("invalid sale kind")
	}
	// Custody records are keyed by listing, so a fixed-price listing that
	// settles into escrow must sell in a single settlement.
	if params.Escrowed && params.Sale == SaleFixedPrice && params.Quantity != 1 {
		return nil, errValidationf("escrowed fixed-price listings sell a single unit")
	}
	if params.MetaHash == ([32]byte{}) {
		return nil, errValidationf("metadata reference required")
	}
	if params.RoyaltyBps > 10_000 || params.MinIncrementBps > 10_000 {
		return nil, errValidationf("bps out of range")
	}
	now := e.now()
	start := params.StartTime
	if start == 0 {
		start = now
	}
	var revealWindow int64
	if params.Sale == SaleAuction {
		if params.EndTime <= now || params.EndTime <= start {
			return nil, errValidationf("auction end time must be in the future")
		}
		duration := params.EndTime - start
		if remaining := params.EndTime - now; remaining < duration {
			duration = remaining
		}
		revealWindow = (duration + revealWindowDivisor - 1) / revealWindowDivisor
		if revealWindow < minRevealWindowSecs {
			revealWindow = minRevealWindowSecs
		}
	}
	listing := &Listing{
		Seller:          params.Seller,
		Token:           params.Token,
		Price:           new(big.Int).Set(params.Price),
		Remaining:       params.Quantity,
		Kind:            params.Kind,
		Sale:            params.Sale,
		Status:          ListingActive,
		StartTime:       start,
		EndTime:         params.EndTime,
		RevealWindow:    revealWindow,
		HighestBid:      big.NewInt(0),
		Reserve:         big.NewInt(0),
		MinIncrementBps: params.MinIncrementBps,
		RoyaltyBps:      params.RoyaltyBps,
		RoyaltyReceiver: params.RoyaltyReceiver,
		Escrowed:        params.Escrowed,
		MetaHash:        params.MetaHash,
		CreatedAt:       now,
	}
	if params.Reserve != nil {
		listing.Reserve = new(big.Int).Set(params.Reserve)
	}
	sanitized, err := SanitizeListing(listing)
	if err != nil {
		return nil, errValidationf("%v", err)
	}
	id, err := e.state.ListingNextID()
	if err != nil {
		return nil, err
	}
	sanitized.ID = id
	if err := e.storeListing(sanitized); err != nil {
		return nil, err
	}
	if err := e.state.ActiveListingAdd(id); err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(sanitized))
	return sanitized.Clone(), nil
}

// UpdateListingPrice changes the unit price of an active fixed-price listing.
// Only the seller may update.
func (e *Engine) UpdateListingPrice(caller [20]byte, listingID uint64, price *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if listingCapability(caller, listing) != CapabilityOwner {
		return errAuthorizationf("only the seller may update the price")
	}
	if listing.Status != ListingActive {
		return errStatef("listing %d is not active", listingID)
	}
	if listing.Sale != SaleFixedPrice {
		return errStatef("price updates apply to fixed-price listings only")
	}
	if price == nil || price.Sign() <= 0 {
		return errValidationf("price must be positive")
	}
	listing.Price = new(big.Int).Set(price)
	if err := e.storeListing(listing); err != nil {
		return err
	}
	e.emit(NewListingPriceUpdatedEvent(listing))
	return nil
}

// CancelListing flips an active listing to cancelled. Auction listings
// refund every outstanding bid lock before the status changes hands.
func (e *Engine) CancelListing(caller [20]byte, listingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if listingCapability(caller, listing) != CapabilityOwner {
		return errAuthorizationf("only the seller may cancel")
	}
	if listing.Status != ListingActive {
		return errStatef("listing %d is not active", listingID)
	}
	var refunds []payout
	var vault [20]byte
	if listing.Sale == SaleAuction {
		commitments, err := e.state.BidList(listingID)
		if err != nil {
			return err
		}
		vault, err = e.state.MarketVaultAddress(listing.Token)
		if err != nil {
			return err
		}
		for _, commitment := range commitments {
			refunds = append(refunds, payout{to: commitment.Bidder, token: listing.Token, amount: commitment.Deposit})
			if err := e.state.BidDelete(listingID, commitment.Bidder); err != nil {
				return err
			}
		}
		listing.HighestBid = big.NewInt(0)
		listing.HighestBidder = [20]byte{}
	}
	listing.Status = ListingCancelled
	if err := e.storeListing(listing); err != nil {
		return err
	}
	if err := e.state.ActiveListingRemove(listingID); err != nil {
		return err
	}
	if len(refunds) > 0 {
		if err := e.settle(vault, refunds); err != nil {
			return err
		}
	}
	e.emit(NewListingCancelledEvent(listing))
	return nil
}

// PurchaseFixed buys quantity units of an active fixed-price listing. All
// record mutations are committed before any balance moves so a transfer
// recipient can never observe half-updated state.
func (e *Engine) PurchaseFixed(buyer [20]byte, listingID uint64, quantity uint64) (*Order, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.ensureTreasuryConfigured(); err != nil {
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
		return nil, errStatef("listing %d is not fixed-price", listingID)
	}
	now := e.now()
	if now < listing.StartTime {
		return nil, errStatef("listing %d has not started", listingID)
	}
	if quantity == 0 || quantity > listing.Remaining {
		return nil, errValidationf("invalid quantity %d (remaining %d)", quantity, listing.Remaining)
	}
	if buyer == listing.Seller {
		return nil, errAuthorizationf("seller cannot buy own listing")
	}
	gross := new(big.Int).Mul(listing.Price, new(big.Int).SetUint64(quantity))
	breakdown := e.breakdownFor(gross, buyer, listing)
	balance, err := e.ledger.Balance(buyer, listing.Token)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(breakdown.Total) < 0 {
		return nil, errEconomicf("insufficient payment: have %s, need %s", balance, breakdown.Total)
	}
	// Every rejectable condition resolves before the first record write so a
	// failed purchase never leaves partial state behind.
	var escrowVault [20]byte
	if listing.Escrowed {
		if e.escrow == nil {
			return nil, errStatef("escrow settlement not configured")
		}
		if err := e.escrow.CanCreateFromSale(listingID); err != nil {
			return nil, err
		}
		escrowVault, err = e.escrow.VaultAddress(listing.Token)
		if err != nil {
			return nil, err
		}
	}

	listing.Remaining -= quantity
	sold := listing.Remaining == 0
	if sold {
		listing.Status = ListingSold
	}
	if err := e.storeListing(listing); err != nil {
		return nil, err
	}
	if sold {
		if err := e.state.ActiveListingRemove(listingID); err != nil {
			return nil, err
		}
	}
	orderID, err := e.state.OrderNextID()
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:        orderID,
		ListingID: listingID,
		Buyer:     buyer,
		Seller:    listing.Seller,
		Amount:    new(big.Int).Set(breakdown.Total),
		Token:     listing.Token,
		Quantity:  quantity,
		CreatedAt: now,
	}
	if err := e.state.OrderPut(order); err != nil {
		return nil, err
	}

	if listing.Escrowed {
		if err := e.escrow.CreateFromSale(listingID, orderID, buyer, listing.Seller, listing.Token, breakdown.Total, breakdown.Seller, breakdown.Fee, breakdown.Royalty, listing.RoyaltyReceiver); err != nil {
			return nil, err
		}
		if err := e.settle(buyer, []payout{{to: escrowVault, token: listing.Token, amount: breakdown.Total}}); err != nil {
			return nil, err
		}
	} else {
		legs := []payout{
			{to: listing.Seller, token: listing.Token, amount: breakdown.Seller},
			{to: e.feeTreasury, token: listing.Token, amount: breakdown.Fee},
			{to: listing.RoyaltyReceiver, token: listing.Token, amount: breakdown.Royalty},
		}
		if err := e.settle(buyer, legs); err != nil {
			return nil, err
		}
	}

	e.emit(NewOrderCreatedEvent(order))
	if sold {
		e.emit(NewListingSoldEvent(listing))
	}
	return order.Clone(), nil
}
