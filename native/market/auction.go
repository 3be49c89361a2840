package market

import (
	"crypto/subtle"
	"math/big"
)

// snipeMarginSecs is the anti-sniping margin: reveals landing inside it
// while the bidding window is still open push the end time out by the same
// margin.
const snipeMarginSecs int64 = 600

// CommitBid locks a deposit and records a sealed-bid commitment for the
// caller. One outstanding commitment per bidder and listing: a second commit
// is rejected until the first is withdrawn, so a stale lock can never be
// silently stranded.
func (e *Engine) CommitBid(bidder [20]byte, listingID uint64, commitment [32]byte, deposit *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if listing.Sale != SaleAuction {
		return errStatef("listing %d is not an auction", listingID)
	}
	if listing.Status != ListingActive {
		return errStatef("listing %d is not active", listingID)
	}
	now := e.now()
	if now < listing.StartTime {
		return errStatef("auction %d has not started", listingID)
	}
	if now > listing.EndTime {
		return errStatef("bidding window for listing %d has closed", listingID)
	}
	if bidder == listing.Seller {
		return errAuthorizationf("seller cannot bid on own listing")
	}
	if commitment == ([32]byte{}) {
		return errValidationf("empty commitment")
	}
	if deposit == nil || deposit.Sign() <= 0 {
		return errValidationf("deposit must be positive")
	}
	if _, exists := e.state.BidGet(listingID, bidder); exists {
		return errStatef("outstanding commitment exists; withdraw it first")
	}
	balance, err := e.ledger.Balance(bidder, listing.Token)
	if err != nil {
		return err
	}
	if balance.Cmp(deposit) < 0 {
		return errEconomicf("insufficient balance for deposit")
	}
	vault, err := e.state.MarketVaultAddress(listing.Token)
	if err != nil {
		return err
	}
	record := &BidCommitment{
		ListingID: listingID,
		Bidder:    bidder,
		Hash:      commitment,
		Deposit:   new(big.Int).Set(deposit),
		Amount:    big.NewInt(0),
		CreatedAt: now,
	}
	if err := e.state.BidPut(record); err != nil {
		return err
	}
	if err := e.settle(bidder, []payout{{to: vault, token: listing.Token, amount: deposit}}); err != nil {
		return err
	}
	e.emit(NewBidCommittedEvent(record))
	return nil
}

// WithdrawCommit reclaims an unrevealed commitment while the bidding window
// is still open, refunding the locked deposit.
func (e *Engine) WithdrawCommit(bidder [20]byte, listingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if listing.Status != ListingActive {
		return errStatef("listing %d is not active", listingID)
	}
	if e.now() > listing.EndTime {
		return errStatef("bidding window for listing %d has closed", listingID)
	}
	commitment, ok := e.state.BidGet(listingID, bidder)
	if !ok {
		return errStatef("no commitment for bidder")
	}
	if commitment.Revealed {
		return errStatef("revealed commitments cannot be withdrawn")
	}
	vault, err := e.state.MarketVaultAddress(listing.Token)
	if err != nil {
		return err
	}
	if err := e.state.BidDelete(listingID, bidder); err != nil {
		return err
	}
	if err := e.settle(vault, []payout{{to: bidder, token: listing.Token, amount: commitment.Deposit}}); err != nil {
		return err
	}
	e.emit(NewBidWithdrawnEvent(listingID, bidder, commitment.Deposit))
	return nil
}

// RevealBid opens a sealed bid. The recomputed commitment hash must match
// the stored one exactly; a mismatch rejects the call with no state change.
// A qualifying reveal refunds the previous leader; a losing reveal refunds
// its own lock immediately. A reveal landing inside the anti-sniping margin
// while bidding is still open extends the end time.
func (e *Engine) RevealBid(bidder [20]byte, listingID uint64, amount *big.Int, salt [32]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if listing.Sale != SaleAuction {
		return errStatef("listing %d is not an auction", listingID)
	}
	if listing.Status != ListingActive {
		return errStatef("listing %d is not active", listingID)
	}
	now := e.now()
	if now < listing.StartTime {
		return errStatef("auction %d has not started", listingID)
	}
	if now > listing.RevealDeadline() {
		return errStatef("reveal window for listing %d has closed", listingID)
	}
	commitment, ok := e.state.BidGet(listingID, bidder)
	if !ok {
		return errStatef("no commitment for bidder")
	}
	if commitment.Revealed {
		return errStatef("commitment already revealed")
	}
	if amount == nil || amount.Sign() <= 0 {
		return errValidationf("bid amount must be positive")
	}
	expected := CommitmentHash(amount, salt, bidder)
	if subtle.ConstantTimeCompare(expected[:], commitment.Hash[:]) != 1 {
		return errValidationf("commitment hash mismatch")
	}
	if amount.Cmp(commitment.Deposit) > 0 {
		return errValidationf("bid exceeds locked deposit")
	}
	if listing.Reserve.Sign() > 0 && amount.Cmp(listing.Reserve) < 0 {
		return errEconomicf("bid below reserve price")
	}
	vault, err := e.state.MarketVaultAddress(listing.Token)
	if err != nil {
		return err
	}

	if !e.outbids(listing, amount) {
		// Losing reveal: refund the lock immediately.
		if err := e.state.BidDelete(listingID, bidder); err != nil {
			return err
		}
		if err := e.settle(vault, []payout{{to: bidder, token: listing.Token, amount: commitment.Deposit}}); err != nil {
			return err
		}
		e.emit(NewBidRevealedEvent(listingID, bidder, amount, false))
		return nil
	}

	var refunds []payout
	previousLeader := listing.HighestBidder
	if listing.HighestBid.Sign() > 0 && previousLeader != ([20]byte{}) && previousLeader != bidder {
		previous, ok := e.state.BidGet(listingID, previousLeader)
		if ok {
			refunds = append(refunds, payout{to: previousLeader, token: listing.Token, amount: previous.Deposit})
			if err := e.state.BidDelete(listingID, previousLeader); err != nil {
				return err
			}
		}
	}
	commitment.Revealed = true
	commitment.Amount = new(big.Int).Set(amount)
	if err := e.state.BidPut(commitment); err != nil {
		return err
	}
	listing.HighestBid = new(big.Int).Set(amount)
	listing.HighestBidder = bidder
	extended := false
	if now < listing.EndTime && listing.EndTime-now < snipeMarginSecs {
		listing.EndTime += snipeMarginSecs
		extended = true
	}
	if err := e.storeListing(listing); err != nil {
		return err
	}
	if len(refunds) > 0 {
		if err := e.settle(vault, refunds); err != nil {
			return err
		}
	}
	e.emit(NewBidRevealedEvent(listingID, bidder, amount, true))
	if extended {
		e.emit(NewAuctionExtendedEvent(listingID, listing.EndTime))
	}
	return nil
}

// outbids reports whether amount beats the current highest bid. Strict
// inequality keeps the earlier bidder on ties; a configured minimum
// increment raises the bar further.
func (e *Engine) outbids(l *Listing, amount *big.Int) bool {
	if l.HighestBid.Sign() == 0 {
		return true
	}
	if amount.Cmp(l.HighestBid) <= 0 {
		return false
	}
	if l.MinIncrementBps > 0 {
		step := new(big.Int).Mul(l.HighestBid, big.NewInt(int64(l.MinIncrementBps)))
		step.Div(step, big.NewInt(10_000))
		floor := new(big.Int).Add(l.HighestBid, step)
		if amount.Cmp(floor) < 0 {
			return false
		}
	}
	return true
}

// EndAuction settles an auction once the reveal window has fully elapsed.
// With a qualifying highest bid the winner pays net of their discount, the
// seller receives the amount net of fee and royalty, and every other lock is
// refunded. Without one the listing expires and all locks are returned.
func (e *Engine) EndAuction(caller [20]byte, listingID uint64) (*Order, error) {
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
	if listing.Sale != SaleAuction {
		return nil, errStatef("listing %d is not an auction", listingID)
	}
	if listing.Status != ListingActive {
		return nil, errStatef("listing %d is not active", listingID)
	}
	if listingCapability(caller, listing) != CapabilityOwner {
		return nil, errAuthorizationf("only the seller may settle")
	}
	now := e.now()
	if now <= listing.RevealDeadline() {
		return nil, errStatef("reveal window for listing %d still open", listingID)
	}
	if listing.Escrowed && e.escrow == nil {
		return nil, errStatef("escrow settlement not configured")
	}
	vault, err := e.state.MarketVaultAddress(listing.Token)
	if err != nil {
		return nil, err
	}
	commitments, err := e.state.BidList(listingID)
	if err != nil {
		return nil, err
	}

	winner := listing.HighestBidder
	var winning *BidCommitment
	if listing.HighestBid.Sign() > 0 && (listing.Reserve.Sign() == 0 || listing.HighestBid.Cmp(listing.Reserve) >= 0) {
		for _, commitment := range commitments {
			if commitment.Bidder == winner && commitment.Revealed {
				winning = commitment
				break
			}
		}
	}

	if winning == nil {
		// No qualifying bid: everything unwinds.
		var refunds []payout
		for _, commitment := range commitments {
			refunds = append(refunds, payout{to: commitment.Bidder, token: listing.Token, amount: commitment.Deposit})
			if err := e.state.BidDelete(listingID, commitment.Bidder); err != nil {
				return nil, err
			}
		}
		listing.Status = ListingExpired
		listing.HighestBid = big.NewInt(0)
		listing.HighestBidder = [20]byte{}
		if err := e.storeListing(listing); err != nil {
			return nil, err
		}
		if err := e.state.ActiveListingRemove(listingID); err != nil {
			return nil, err
		}
		if err := e.settle(vault, refunds); err != nil {
			return nil, err
		}
		e.emit(NewListingExpiredEvent(listing))
		return nil, nil
	}

	breakdown := e.breakdownFor(listing.HighestBid, winner, listing)
	excess := new(big.Int).Sub(winning.Deposit, breakdown.Total)

	quantity := listing.Remaining
	listing.Remaining = 0
	listing.Status = ListingSold
	if err := e.storeListing(listing); err != nil {
		return nil, err
	}
	if err := e.state.ActiveListingRemove(listingID); err != nil {
		return nil, err
	}
	orderID, err := e.state.OrderNextID()
	if err != nil {
		return nil, err
	}
	order := &Order{
		ID:        orderID,
		ListingID: listingID,
		Buyer:     winner,
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
	for _, commitment := range commitments {
		if commitment.Bidder == winner {
			continue
		}
		legs = append(legs, payout{to: commitment.Bidder, token: listing.Token, amount: commitment.Deposit})
		if err := e.state.BidDelete(listingID, commitment.Bidder); err != nil {
			return nil, err
		}
	}
	if err := e.state.BidDelete(listingID, winner); err != nil {
		return nil, err
	}
	if excess.Sign() > 0 {
		legs = append(legs, payout{to: winner, token: listing.Token, amount: excess})
	}

	if listing.Escrowed {
		escrowVault, err := e.escrow.VaultAddress(listing.Token)
		if err != nil {
			return nil, err
		}
		if err := e.escrow.CreateFromSale(listingID, orderID, winner, listing.Seller, listing.Token, breakdown.Total, breakdown.Seller, breakdown.Fee, breakdown.Royalty, listing.RoyaltyReceiver); err != nil {
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
	e.emit(NewAuctionSettledEvent(listing, winner, listing.HighestBid, orderID))
	e.emit(NewOrderCreatedEvent(order))
	return order.Clone(), nil
}
