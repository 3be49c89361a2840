package market

import (
	"errors"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"bazaarchain/core/events"
	"bazaarchain/core/types"
	"bazaarchain/native/bank"
	nativecommon "bazaarchain/native/common"
	"bazaarchain/native/fees"
	"bazaarchain/native/reputation"
)

const marketModuleName = "market"

var (
	errNilState       = errors.New("market engine: state not configured")
	errNilLedger      = errors.New("market engine: ledger not configured")
	errNilTreasury    = errors.New("market engine: fee treasury not configured")
	errListingMissing = errors.New("market engine: listing not found")
	errOfferMissing   = errors.New("market engine: offer not found")
)

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id uint64) (*Listing, bool)
	ListingNextID() (uint64, error)
	ActiveListingAdd(id uint64) error
	ActiveListingRemove(id uint64) error
	OfferPut(*Offer) error
	OfferGet(id uint64) (*Offer, bool)
	OfferNextID() (uint64, error)
	OfferIndexAdd(listingID, offerID uint64) error
	OfferIndexList(listingID uint64) ([]uint64, error)
	OrderPut(*Order) error
	OrderGet(id uint64) (*Order, bool)
	OrderNextID() (uint64, error)
	BidPut(*BidCommitment) error
	BidGet(listingID uint64, bidder [20]byte) (*BidCommitment, bool)
	BidDelete(listingID uint64, bidder [20]byte) error
	BidList(listingID uint64) ([]*BidCommitment, error)
	MarketVaultAddress(token string) ([20]byte, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// EscrowSettler is the escrow collaborator invoked when a sale settles into
// custody instead of paying the seller directly. CanCreateFromSale runs
// before any record write so custody rejections never follow a mutation.
type EscrowSettler interface {
	VaultAddress(token string) ([20]byte, error)
	CanCreateFromSale(listingID uint64) error
	CreateFromSale(listingID, orderID uint64, buyer, seller [20]byte, token string, total, sellerAmount, fee, royalty *big.Int, royaltyReceiver [20]byte) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Capability is the typed authorization result for an operation entry. Every
// operation resolves the caller's capability exactly once instead of
// scattering ad hoc checks.
type Capability uint8

const (
	CapabilityNone Capability = iota
	CapabilityOwner
	CapabilityParty
)

// Engine wires the listing, auction and offer business logic with external
// state, the payment ledger and event emitters. Operations execute under the
// host ledger's global serialization: there is no internal concurrency and
// every state mutation precedes the ledger transfers it pays for.
type Engine struct {
	state          engineState
	ledger         *bank.Ledger
	escrow         EscrowSettler
	tiers          reputation.TierSource
	emitter        events.Emitter
	pauses         nativecommon.PauseView
	feeTreasury    [20]byte
	minListingTier uint8
	nowFn          func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) {
	e.state = state
	e.ledger = bank.NewLedger(state)
}

// SetEscrow configures the escrow collaborator used for custody settlements.
func (e *Engine) SetEscrow(settler EscrowSettler) { e.escrow = settler }

// SetTierSource configures the reputation collaborator used for loyalty
// lookups. A nil source means every address is tier zero.
func (e *Engine) SetTierSource(src reputation.TierSource) { e.tiers = src }

// SetFeeTreasury configures the address that receives platform fees.
func (e *Engine) SetFeeTreasury(addr [20]byte) { e.feeTreasury = addr }

// SetMinListingTier configures the loyalty floor required to create listings.
func (e *Engine) SetMinListingTier(tier uint8) { e.minListingTier = tier }

// SetPauses configures the module pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) { e.pauses = p }

// SetNowFunc overrides the time source used by the engine. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) tierOf(addr [20]byte) uint8 {
	if e == nil || e.tiers == nil {
		return 0
	}
	return e.tiers.LoyaltyTier(addr)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nativecommon.Guard(e.pauses, marketModuleName)
}

func (e *Engine) ensureTreasuryConfigured() error {
	if e == nil || e.feeTreasury == ([20]byte{}) {
		return errNilTreasury
	}
	return nil
}

func (e *Engine) loadListing(id uint64) (*Listing, error) {
	listing, ok := e.state.ListingGet(id)
	if !ok {
		return nil, &Error{Kind: KindState, Err: errListingMissing}
	}
	return SanitizeListing(listing)
}

func (e *Engine) storeListing(l *Listing) error {
	return e.state.ListingPut(l)
}

// listingCapability resolves the caller's standing against a listing.
func listingCapability(caller [20]byte, l *Listing) Capability {
	if l == nil {
		return CapabilityNone
	}
	if caller == l.Seller {
		return CapabilityOwner
	}
	return CapabilityNone
}

// offerCapability resolves the caller's standing against an offer and its
// listing: the listing seller is Owner, the offer buyer is Party.
func offerCapability(caller [20]byte, l *Listing, o *Offer) Capability {
	if l != nil && caller == l.Seller {
		return CapabilityOwner
	}
	if o != nil && caller == o.Buyer {
		return CapabilityParty
	}
	return CapabilityNone
}

// CommitmentHash derives the sealed-bid commitment for an amount, salt and
// bidder identity. The amount is big-endian padded to 32 bytes so equal
// values always hash identically.
func CommitmentHash(amount *big.Int, salt [32]byte, bidder [20]byte) [32]byte {
	var padded [32]byte
	if amount != nil && amount.Sign() > 0 {
		amount.FillBytes(padded[:])
	}
	return ethcrypto.Keccak256Hash(padded[:], salt[:], bidder[:])
}

// payout is one leg of a settlement.
type payout struct {
	to     [20]byte
	token  string
	amount *big.Int
}

// settle performs the ledger transfers for an already-committed settlement.
// Callers must have persisted every record mutation first; no state is read
// or written here beyond account balances.
func (e *Engine) settle(from [20]byte, legs []payout) error {
	for _, leg := range legs {
		if leg.amount == nil || leg.amount.Sign() == 0 {
			continue
		}
		if err := e.ledger.Transfer(from, leg.to, leg.token, leg.amount); err != nil {
			return errTransfer(err)
		}
	}
	return nil
}

// breakdownFor prices a settlement for the given parties and listing terms.
func (e *Engine) breakdownFor(gross *big.Int, buyer [20]byte, l *Listing) fees.Breakdown {
	return fees.Calculate(fees.Input{
		Gross:              gross,
		BuyerTier:          e.tierOf(buyer),
		SellerTier:         e.tierOf(l.Seller),
		RoyaltyBps:         l.RoyaltyBps,
		PayWithRewardAsset: l.Token == "LBZ",
	})
}
