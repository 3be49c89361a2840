package escrow

import (
	"errors"
	"math/big"
	"time"

	"bazaarchain/core/events"
	"bazaarchain/core/types"
	"bazaarchain/native/bank"
	nativecommon "bazaarchain/native/common"
)

const escrowModuleName = "escrow"

var (
	errNilState       = errors.New("escrow engine: state not configured")
	errNilTreasury    = errors.New("escrow engine: fee treasury not configured")
	errNilResolvers   = errors.New("escrow engine: resolver source not configured")
	errEscrowNotFound = errors.New("escrow engine: escrow not found")
)

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(listingID uint64) (*Escrow, bool)
	EscrowVaultAddress(token string) ([20]byte, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// ResolverSource is the dispute-arbitration collaborator. It picks the
// identity allowed to decide an escalated escrow; the voting mechanics live
// outside this repository.
type ResolverSource interface {
	AssignResolver(listingID uint64, buyer, seller [20]byte) ([20]byte, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Capability is the typed authorization result for an escrow operation.
type Capability uint8

const (
	CapabilityNone Capability = iota
	CapabilityParty
	CapabilityResolver
)

// Engine owns the dual-approval escrow state machine. Funds enter the escrow
// vault when a sale settles into custody and leave exactly once: on mutual
// approval or on a resolver verdict.
type Engine struct {
	state       engineState
	ledger      *bank.Ledger
	resolvers   ResolverSource
	emitter     events.Emitter
	pauses      nativecommon.PauseView
	feeTreasury [20]byte
	nowFn       func() int64
}

// NewEngine creates an escrow engine with a no-op emitter.
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

// SetResolverSource configures the dispute collaborator.
func (e *Engine) SetResolverSource(src ResolverSource) { e.resolvers = src }

// SetFeeTreasury configures the address that receives platform fees.
func (e *Engine) SetFeeTreasury(addr [20]byte) { e.feeTreasury = addr }

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
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil || e.ledger == nil {
		return errNilState
	}
	return nativecommon.Guard(e.pauses, escrowModuleName)
}

func (e *Engine) loadEscrow(listingID uint64) (*Escrow, error) {
	esc, ok := e.state.EscrowGet(listingID)
	if !ok {
		return nil, &nativecommon.Error{Kind: nativecommon.KindState, Err: errEscrowNotFound}
	}
	return SanitizeEscrow(esc)
}

// capability resolves the caller's standing against an escrow: buyer and
// seller are parties, the assigned resolver (once a dispute is open) is the
// resolver, everyone else has no standing.
func capability(caller [20]byte, esc *Escrow) Capability {
	if esc == nil {
		return CapabilityNone
	}
	if caller == esc.Buyer || caller == esc.Seller {
		return CapabilityParty
	}
	if esc.Disputed && esc.Resolver != ([20]byte{}) && caller == esc.Resolver {
		return CapabilityResolver
	}
	return CapabilityNone
}

// VaultAddress exposes the custody address for a token. The market engine
// routes gross settlement amounts here before asking for an escrow record.
func (e *Engine) VaultAddress(token string) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	return e.state.EscrowVaultAddress(token)
}

// CanCreateFromSale reports whether a custody record can be opened for the
// listing. The market engine consults it before mutating any record, so a
// pause or an existing escrow rejects the sale up front instead of after
// writes have landed.
func (e *Engine) CanCreateFromSale(listingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, exists := e.state.EscrowGet(listingID); exists {
		return errStatef("escrow for listing %d already exists", listingID)
	}
	return nil
}

// CreateFromSale persists the escrow record for a sale that settles into
// custody. It is invoked by the market engine inside the same transaction
// that moves the gross amount into the vault; at most one escrow exists per
// listing.
func (e *Engine) CreateFromSale(listingID, orderID uint64, buyer, seller [20]byte, token string, total, sellerAmount, fee, royalty *big.Int, royaltyReceiver [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if _, exists := e.state.EscrowGet(listingID); exists {
		return errStatef("escrow for listing %d already exists", listingID)
	}
	esc := &Escrow{
		ListingID:       listingID,
		OrderID:         orderID,
		Buyer:           buyer,
		Seller:          seller,
		Token:           token,
		Amount:          cloneBig(total),
		SellerAmount:    cloneBig(sellerAmount),
		Fee:             cloneBig(fee),
		Royalty:         cloneBig(royalty),
		RoyaltyReceiver: royaltyReceiver,
		CreatedAt:       e.now(),
	}
	sanitized, err := SanitizeEscrow(esc)
	if err != nil {
		return errValidationf("%v", err)
	}
	if sanitized.Amount.Sign() <= 0 {
		return errValidationf("escrow amount must be positive")
	}
	if err := e.state.EscrowPut(sanitized); err != nil {
		return err
	}
	e.emit(NewCreatedEvent(sanitized))
	return nil
}

// Approve records one party's approval. When both parties have approved the
// funds release immediately: seller amount to the seller, fee to the
// treasury, royalty to its receiver, and the escrow becomes terminal.
func (e *Engine) Approve(caller [20]byte, listingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	esc, err := e.loadEscrow(listingID)
	if err != nil {
		return err
	}
	if esc.Resolved() {
		return errStatef("escrow for listing %d already resolved", listingID)
	}
	if esc.Disputed {
		return errStatef("escrow for listing %d is disputed", listingID)
	}
	if capability(caller, esc) != CapabilityParty {
		return errAuthorizationf("caller is not a party to the escrow")
	}
	if caller == esc.Buyer {
		if esc.BuyerApproved {
			return errStatef("buyer already approved")
		}
		esc.BuyerApproved = true
	} else {
		if esc.SellerApproved {
			return errStatef("seller already approved")
		}
		esc.SellerApproved = true
	}
	if !(esc.BuyerApproved && esc.SellerApproved) {
		if err := e.state.EscrowPut(esc); err != nil {
			return err
		}
		e.emit(NewApprovedEvent(esc))
		return nil
	}
	if err := e.ensureTreasuryConfigured(); err != nil {
		return err
	}
	esc.ResolvedAt = e.now()
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	if err := e.release(esc); err != nil {
		return err
	}
	e.emit(NewReleasedEvent(esc))
	return nil
}

// OpenDispute escalates the escrow. Either party may open a dispute before
// resolution; the dispute collaborator assigns the resolver and further
// approvals freeze.
func (e *Engine) OpenDispute(caller [20]byte, listingID uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	esc, err := e.loadEscrow(listingID)
	if err != nil {
		return err
	}
	if esc.Resolved() {
		return errStatef("escrow for listing %d already resolved", listingID)
	}
	if esc.Disputed {
		return errStatef("escrow for listing %d already disputed", listingID)
	}
	if capability(caller, esc) != CapabilityParty {
		return errAuthorizationf("caller is not a party to the escrow")
	}
	if e.resolvers == nil {
		return errNilResolvers
	}
	resolver, err := e.resolvers.AssignResolver(listingID, esc.Buyer, esc.Seller)
	if err != nil {
		return err
	}
	if resolver == ([20]byte{}) {
		return errStatef("no resolver available")
	}
	esc.Disputed = true
	esc.Resolver = resolver
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(esc))
	return nil
}

// Resolve settles a disputed escrow according to the resolver verdict. A
// buyer win refunds the full held amount; otherwise the seller is paid net
// of fee and royalty. The record becomes terminal either way.
func (e *Engine) Resolve(caller [20]byte, listingID uint64, buyerWins bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	esc, err := e.loadEscrow(listingID)
	if err != nil {
		return err
	}
	if esc.Resolved() {
		return errStatef("escrow for listing %d already resolved", listingID)
	}
	if !esc.Disputed {
		return errStatef("escrow for listing %d has no open dispute", listingID)
	}
	if capability(caller, esc) != CapabilityResolver {
		return errAuthorizationf("caller is not the assigned resolver")
	}
	esc.ResolvedAt = e.now()
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	vault, err := e.state.EscrowVaultAddress(esc.Token)
	if err != nil {
		return err
	}
	if buyerWins {
		if err := e.transfer(vault, esc.Buyer, esc.Token, esc.Amount); err != nil {
			return err
		}
	} else {
		if err := e.ensureTreasuryConfigured(); err != nil {
			return err
		}
		if err := e.release(esc); err != nil {
			return err
		}
	}
	e.emit(NewResolvedEvent(esc))
	return nil
}

func (e *Engine) ensureTreasuryConfigured() error {
	if e == nil || e.feeTreasury == ([20]byte{}) {
		return errNilTreasury
	}
	return nil
}

// release pays out the frozen split from the vault. Callers must have
// persisted the terminal record first.
func (e *Engine) release(esc *Escrow) error {
	vault, err := e.state.EscrowVaultAddress(esc.Token)
	if err != nil {
		return err
	}
	if err := e.transfer(vault, esc.Seller, esc.Token, esc.SellerAmount); err != nil {
		return err
	}
	if err := e.transfer(vault, e.feeTreasury, esc.Token, esc.Fee); err != nil {
		return err
	}
	return e.transfer(vault, esc.RoyaltyReceiver, esc.Token, esc.Royalty)
}

func (e *Engine) transfer(from, to [20]byte, token string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if err := e.ledger.Transfer(from, to, token, amount); err != nil {
		return errTransfer(err)
	}
	return nil
}
