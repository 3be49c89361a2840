package market

import (
	"math/big"
	"testing"
)

func TestCommitBidLocksDeposit(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	vault, _ := state.MarketVaultAddress("BZR")
	hash := CommitmentHash(big.NewInt(500), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(600)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := state.balance(bidder, "BZR"); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("bidder balance = %s, want 400", got)
	}
	if got := state.balance(vault, "BZR"); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("vault balance = %s, want 600", got)
	}
	if !emitter.has(EventTypeBidCommitted) {
		t.Fatalf("missing committed event")
	}

	// A second commitment is rejected while the first lock is outstanding.
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(100)); KindOf(err) != KindState {
		t.Fatalf("re-commit: expected state rejection, got %v", err)
	}
	if got := state.balance(bidder, "BZR"); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("rejected re-commit moved funds: %s", got)
	}
}

func TestCommitBidRejections(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 100)
	state.fund(seller, "BZR", 100)

	fixed := mustCreateFixed(t, engine, seller, 100, 1)
	hash := CommitmentHash(big.NewInt(50), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, fixed.ID, hash, big.NewInt(50)); KindOf(err) != KindState {
		t.Fatalf("fixed-price commit: expected state rejection, got %v", err)
	}

	auction := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	if err := engine.CommitBid(seller, auction.ID, hash, big.NewInt(50)); KindOf(err) != KindAuthorization {
		t.Fatalf("seller self-bid: expected authorization rejection, got %v", err)
	}
	if err := engine.CommitBid(bidder, auction.ID, [32]byte{}, big.NewInt(50)); KindOf(err) != KindValidation {
		t.Fatalf("empty commitment: expected validation rejection, got %v", err)
	}
	if err := engine.CommitBid(bidder, auction.ID, hash, big.NewInt(0)); KindOf(err) != KindValidation {
		t.Fatalf("zero deposit: expected validation rejection, got %v", err)
	}
	if err := engine.CommitBid(bidder, auction.ID, hash, big.NewInt(500)); KindOf(err) != KindEconomic {
		t.Fatalf("deposit above balance: expected economic rejection, got %v", err)
	}

	engine.SetNowFunc(func() int64 { return auction.EndTime + 1 })
	if err := engine.CommitBid(bidder, auction.ID, hash, big.NewInt(50)); KindOf(err) != KindState {
		t.Fatalf("late commit: expected state rejection, got %v", err)
	}
}

func TestWithdrawCommit(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	hash := CommitmentHash(big.NewInt(500), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(600)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := engine.WithdrawCommit(bidder, listing.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := state.balance(bidder, "BZR"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("bidder balance = %s, want full refund", got)
	}
	if _, ok := state.BidGet(listing.ID, bidder); ok {
		t.Fatalf("commitment survived withdrawal")
	}
	if !emitter.has(EventTypeBidWithdrawn) {
		t.Fatalf("missing withdrawn event")
	}

	// The slot is free again: committing anew succeeds.
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(600)); err != nil {
		t.Fatalf("re-commit after withdrawal: %v", err)
	}
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(500), [32]byte{1}); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if err := engine.WithdrawCommit(bidder, listing.ID); KindOf(err) != KindState {
		t.Fatalf("revealed withdrawal: expected state rejection, got %v", err)
	}
}

func TestRevealBidHashMismatch(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	hash := CommitmentHash(big.NewInt(500), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(600)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Wrong salt, wrong amount: both must leave the commitment untouched.
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(500), [32]byte{2}); KindOf(err) != KindValidation {
		t.Fatalf("wrong salt: expected validation rejection, got %v", err)
	}
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(400), [32]byte{1}); KindOf(err) != KindValidation {
		t.Fatalf("wrong amount: expected validation rejection, got %v", err)
	}
	commitment, ok := state.BidGet(listing.ID, bidder)
	if !ok || commitment.Revealed {
		t.Fatalf("mismatched reveal mutated the commitment")
	}
	if got := state.balance(bidder, "BZR"); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("mismatched reveal moved funds: %s", got)
	}

	// The honest reveal still goes through afterwards.
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(500), [32]byte{1}); err != nil {
		t.Fatalf("honest reveal: %v", err)
	}
}

func TestRevealBidAmountAboveDeposit(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	hash := CommitmentHash(big.NewInt(700), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(600)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(700), [32]byte{1}); KindOf(err) != KindValidation {
		t.Fatalf("bid above deposit: expected validation rejection, got %v", err)
	}
}

func TestRevealBidBelowReserveKeepsLock(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 500, testNow+10_000)
	hash := CommitmentHash(big.NewInt(300), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(300)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(300), [32]byte{1}); KindOf(err) != KindEconomic {
		t.Fatalf("below reserve: expected economic rejection, got %v", err)
	}
	if _, ok := state.BidGet(listing.ID, bidder); !ok {
		t.Fatalf("below-reserve reveal dropped the lock")
	}
	// The bidder can still reclaim the deposit while bidding is open.
	if err := engine.WithdrawCommit(bidder, listing.ID); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
}

func TestRevealBidLeaderChange(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	alice := newTestAddress(0x02)
	bob := newTestAddress(0x03)
	state.fund(alice, "BZR", 1000)
	state.fund(bob, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	aliceHash := CommitmentHash(big.NewInt(300), [32]byte{1}, alice)
	bobHash := CommitmentHash(big.NewInt(400), [32]byte{2}, bob)
	if err := engine.CommitBid(alice, listing.ID, aliceHash, big.NewInt(300)); err != nil {
		t.Fatalf("alice commit: %v", err)
	}
	if err := engine.CommitBid(bob, listing.ID, bobHash, big.NewInt(500)); err != nil {
		t.Fatalf("bob commit: %v", err)
	}
	if err := engine.RevealBid(alice, listing.ID, big.NewInt(300), [32]byte{1}); err != nil {
		t.Fatalf("alice reveal: %v", err)
	}
	stored, _ := state.ListingGet(listing.ID)
	if stored.HighestBidder != alice {
		t.Fatalf("alice should lead after first reveal")
	}
	if err := engine.RevealBid(bob, listing.ID, big.NewInt(400), [32]byte{2}); err != nil {
		t.Fatalf("bob reveal: %v", err)
	}
	stored, _ = state.ListingGet(listing.ID)
	if stored.HighestBidder != bob || stored.HighestBid.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("bob should lead with 400, got %s by %x", stored.HighestBid, stored.HighestBidder)
	}
	// The outbid leader is refunded immediately.
	if got := state.balance(alice, "BZR"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("alice balance = %s, want full refund", got)
	}
	if _, ok := state.BidGet(listing.ID, alice); ok {
		t.Fatalf("outbid commitment survived")
	}
}

func TestRevealBidTieKeepsEarlierLeader(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	alice := newTestAddress(0x02)
	bob := newTestAddress(0x03)
	state.fund(alice, "BZR", 1000)
	state.fund(bob, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	aliceHash := CommitmentHash(big.NewInt(300), [32]byte{1}, alice)
	bobHash := CommitmentHash(big.NewInt(300), [32]byte{2}, bob)
	if err := engine.CommitBid(alice, listing.ID, aliceHash, big.NewInt(300)); err != nil {
		t.Fatalf("alice commit: %v", err)
	}
	if err := engine.CommitBid(bob, listing.ID, bobHash, big.NewInt(300)); err != nil {
		t.Fatalf("bob commit: %v", err)
	}
	if err := engine.RevealBid(alice, listing.ID, big.NewInt(300), [32]byte{1}); err != nil {
		t.Fatalf("alice reveal: %v", err)
	}
	if err := engine.RevealBid(bob, listing.ID, big.NewInt(300), [32]byte{2}); err != nil {
		t.Fatalf("bob reveal: %v", err)
	}
	stored, _ := state.ListingGet(listing.ID)
	if stored.HighestBidder != alice {
		t.Fatalf("tie should keep the earlier bidder")
	}
	// Bob's losing reveal is refunded on the spot.
	if got := state.balance(bob, "BZR"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("bob balance = %s, want full refund", got)
	}
}

func TestRevealBidMinimumIncrement(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	alice := newTestAddress(0x02)
	bob := newTestAddress(0x03)
	state.fund(alice, "BZR", 1000)
	state.fund(bob, "BZR", 1000)

	listing, err := engine.CreateListing(CreateListingParams{
		Seller:          seller,
		Token:           "BZR",
		Price:           big.NewInt(100),
		Quantity:        1,
		Kind:            ItemUniqueAsset,
		Sale:            SaleAuction,
		EndTime:         testNow + 10_000,
		MinIncrementBps: 1000,
		MetaHash:        [32]byte{2},
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	aliceHash := CommitmentHash(big.NewInt(300), [32]byte{1}, alice)
	bobHash := CommitmentHash(big.NewInt(310), [32]byte{2}, bob)
	if err := engine.CommitBid(alice, listing.ID, aliceHash, big.NewInt(300)); err != nil {
		t.Fatalf("alice commit: %v", err)
	}
	if err := engine.CommitBid(bob, listing.ID, bobHash, big.NewInt(310)); err != nil {
		t.Fatalf("bob commit: %v", err)
	}
	if err := engine.RevealBid(alice, listing.ID, big.NewInt(300), [32]byte{1}); err != nil {
		t.Fatalf("alice reveal: %v", err)
	}
	// 310 beats 300 but misses the 10% increment floor of 330, so the reveal
	// loses and refunds.
	if err := engine.RevealBid(bob, listing.ID, big.NewInt(310), [32]byte{2}); err != nil {
		t.Fatalf("bob reveal: %v", err)
	}
	stored, _ := state.ListingGet(listing.ID)
	if stored.HighestBidder != alice {
		t.Fatalf("increment floor ignored")
	}
	if got := state.balance(bob, "BZR"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("bob balance = %s, want full refund", got)
	}
}

func TestRevealBidAntiSnipeExtension(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	hash := CommitmentHash(big.NewInt(500), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(500)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Reveal 100 seconds before close: the end time pushes out by the margin.
	engine.SetNowFunc(func() int64 { return listing.EndTime - 100 })
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(500), [32]byte{1}); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	stored, _ := state.ListingGet(listing.ID)
	if stored.EndTime != listing.EndTime+600 {
		t.Fatalf("end time = %d, want %d", stored.EndTime, listing.EndTime+600)
	}
	if !emitter.has(EventTypeAuctionExtended) {
		t.Fatalf("missing extension event")
	}
}

func TestRevealBidAfterCloseNoExtension(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	hash := CommitmentHash(big.NewInt(500), [32]byte{1}, bidder)
	if err := engine.CommitBid(bidder, listing.ID, hash, big.NewInt(500)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Bidding has closed but the reveal window is still open: accepted, no
	// extension.
	engine.SetNowFunc(func() int64 { return listing.EndTime + 100 })
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(500), [32]byte{1}); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	stored, _ := state.ListingGet(listing.ID)
	if stored.EndTime != listing.EndTime {
		t.Fatalf("closed-window reveal extended the auction")
	}

	// Past the reveal deadline nothing is accepted.
	engine.SetNowFunc(func() int64 { return stored.RevealDeadline() + 1 })
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(500), [32]byte{1}); KindOf(err) != KindState {
		t.Fatalf("late reveal: expected state rejection, got %v", err)
	}
}

func TestEndAuctionSettlesWinner(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := newTestAddress(0x01)
	alice := newTestAddress(0x02)
	bob := newTestAddress(0x03)
	carol := newTestAddress(0x04)
	treasury := newTestAddress(0xFE)
	state.fund(alice, "BZR", 1000)
	state.fund(bob, "BZR", 1000)
	state.fund(carol, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	if err := engine.CommitBid(alice, listing.ID, CommitmentHash(big.NewInt(300), [32]byte{1}, alice), big.NewInt(300)); err != nil {
		t.Fatalf("alice commit: %v", err)
	}
	if err := engine.CommitBid(bob, listing.ID, CommitmentHash(big.NewInt(400), [32]byte{2}, bob), big.NewInt(600)); err != nil {
		t.Fatalf("bob commit: %v", err)
	}
	// Carol commits but never reveals; her lock unwinds at settlement.
	if err := engine.CommitBid(carol, listing.ID, CommitmentHash(big.NewInt(350), [32]byte{3}, carol), big.NewInt(350)); err != nil {
		t.Fatalf("carol commit: %v", err)
	}
	if err := engine.RevealBid(alice, listing.ID, big.NewInt(300), [32]byte{1}); err != nil {
		t.Fatalf("alice reveal: %v", err)
	}
	if err := engine.RevealBid(bob, listing.ID, big.NewInt(400), [32]byte{2}); err != nil {
		t.Fatalf("bob reveal: %v", err)
	}

	stored, _ := state.ListingGet(listing.ID)
	if _, err := engine.EndAuction(seller, listing.ID); KindOf(err) != KindState {
		t.Fatalf("early settle: expected state rejection, got %v", err)
	}
	engine.SetNowFunc(func() int64 { return stored.RevealDeadline() + 1 })
	if _, err := engine.EndAuction(alice, listing.ID); KindOf(err) != KindAuthorization {
		t.Fatalf("non-seller settle: expected authorization rejection, got %v", err)
	}
	order, err := engine.EndAuction(seller, listing.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if order == nil || order.Buyer != bob {
		t.Fatalf("unexpected order %+v", order)
	}
	// 400 winning bid, 250 bps fee: seller 390, treasury 10. Bob locked 600
	// so 200 comes back; alice was refunded at reveal, carol at settlement.
	if order.Amount.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("order amount = %s, want 400", order.Amount)
	}
	if got := state.balance(seller, "BZR"); got.Cmp(big.NewInt(390)) != 0 {
		t.Fatalf("seller balance = %s, want 390", got)
	}
	if got := state.balance(treasury, "BZR"); got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("treasury balance = %s, want 10", got)
	}
	if got := state.balance(bob, "BZR"); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("bob balance = %s, want 600", got)
	}
	if got := state.balance(alice, "BZR"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("alice balance = %s, want 1000", got)
	}
	if got := state.balance(carol, "BZR"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("carol balance = %s, want 1000", got)
	}
	vault, _ := state.MarketVaultAddress("BZR")
	if got := state.balance(vault, "BZR"); got.Sign() != 0 {
		t.Fatalf("vault retains %s after settlement", got)
	}
	final, _ := state.ListingGet(listing.ID)
	if final.Status != ListingSold {
		t.Fatalf("listing status = %d, want sold", final.Status)
	}
	if commitments, _ := state.BidList(listing.ID); len(commitments) != 0 {
		t.Fatalf("commitments survived settlement")
	}
	if !emitter.has(EventTypeAuctionSettled) || !emitter.has(EventTypeOrderCreated) {
		t.Fatalf("missing settlement events, saw %v", emitter.types)
	}

	if _, err := engine.EndAuction(seller, listing.ID); KindOf(err) != KindState {
		t.Fatalf("double settle: expected state rejection, got %v", err)
	}
}

func TestEndAuctionWithoutWinnerExpires(t *testing.T) {
	engine, state, emitter := newTestEngine(t)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing := mustCreateAuction(t, engine, seller, 100, 0, testNow+10_000)
	// Committed but never revealed.
	if err := engine.CommitBid(bidder, listing.ID, CommitmentHash(big.NewInt(300), [32]byte{1}, bidder), big.NewInt(300)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	engine.SetNowFunc(func() int64 { return listing.RevealDeadline() + 1 })
	order, err := engine.EndAuction(seller, listing.ID)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if order != nil {
		t.Fatalf("expired auction produced an order")
	}
	if got := state.balance(bidder, "BZR"); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("bidder balance = %s, want full refund", got)
	}
	stored, _ := state.ListingGet(listing.ID)
	if stored.Status != ListingExpired {
		t.Fatalf("listing status = %d, want expired", stored.Status)
	}
	if !emitter.has(EventTypeListingExpired) {
		t.Fatalf("missing expired event")
	}
}

func TestEndAuctionEscrowed(t *testing.T) {
	engine, state, _ := newTestEngine(t)
	settler := newMockEscrow()
	engine.SetEscrow(settler)
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	state.fund(bidder, "BZR", 1000)

	listing, err := engine.CreateListing(CreateListingParams{
		Seller:   seller,
		Token:    "BZR",
		Price:    big.NewInt(100),
		Quantity: 1,
		Kind:     ItemUniqueAsset,
		Sale:     SaleAuction,
		EndTime:  testNow + 10_000,
		Escrowed: true,
		MetaHash: [32]byte{2},
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	if err := engine.CommitBid(bidder, listing.ID, CommitmentHash(big.NewInt(400), [32]byte{1}, bidder), big.NewInt(500)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := engine.RevealBid(bidder, listing.ID, big.NewInt(400), [32]byte{1}); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	engine.SetNowFunc(func() int64 { return listing.RevealDeadline() + 1 })
	if _, err := engine.EndAuction(seller, listing.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	// Payable amount moves to the escrow vault, the 100 excess returns to the
	// winner, the seller waits for release.
	if got := state.balance(settler.vault, "BZR"); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("escrow vault balance = %s, want 400", got)
	}
	if got := state.balance(bidder, "BZR"); got.Cmp(big.NewInt(600)) != 0 {
		t.Fatalf("bidder balance = %s, want 600", got)
	}
	if got := state.balance(seller, "BZR"); got.Sign() != 0 {
		t.Fatalf("seller paid before escrow release: %s", got)
	}
	if len(settler.calls) != 1 {
		t.Fatalf("escrow calls = %d, want 1", len(settler.calls))
	}
}
