package market

import (
	"bytes"
	"math/big"
	"testing"

	"bazaarchain/core/events"
	"bazaarchain/core/types"
	"bazaarchain/native/reputation"
)

type mockState struct {
	listings map[uint64]*Listing
	active   map[uint64]bool
	offers   map[uint64]*Offer
	offerIdx map[uint64][]uint64
	orders   map[uint64]*Order
	bids     map[uint64]map[[20]byte]*BidCommitment
	bidOrder map[uint64][][20]byte
	accounts map[[20]byte]*types.Account
	counters map[string]uint64
}

func newMockState() *mockState {
	return &mockState{
		listings: make(map[uint64]*Listing),
		active:   make(map[uint64]bool),
		offers:   make(map[uint64]*Offer),
		offerIdx: make(map[uint64][]uint64),
		orders:   make(map[uint64]*Order),
		bids:     make(map[uint64]map[[20]byte]*BidCommitment),
		bidOrder: make(map[uint64][][20]byte),
		accounts: make(map[[20]byte]*types.Account),
		counters: make(map[string]uint64),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) next(name string) (uint64, error) {
	m.counters[name]++
	return m.counters[name], nil
}

func (m *mockState) ListingPut(l *Listing) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	m.listings[sanitized.ID] = sanitized.Clone()
	return nil
}

func (m *mockState) ListingGet(id uint64) (*Listing, bool) {
	l, ok := m.listings[id]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

func (m *mockState) ListingNextID() (uint64, error) { return m.next("listing") }

func (m *mockState) ActiveListingAdd(id uint64) error {
	m.active[id] = true
	return nil
}

func (m *mockState) ActiveListingRemove(id uint64) error {
	delete(m.active, id)
	return nil
}

func (m *mockState) OfferPut(o *Offer) error {
	m.offers[o.ID] = o.Clone()
	return nil
}

func (m *mockState) OfferGet(id uint64) (*Offer, bool) {
	o, ok := m.offers[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (m *mockState) OfferNextID() (uint64, error) { return m.next("offer") }

func (m *mockState) OfferIndexAdd(listingID, offerID uint64) error {
	m.offerIdx[listingID] = append(m.offerIdx[listingID], offerID)
	return nil
}

func (m *mockState) OfferIndexList(listingID uint64) ([]uint64, error) {
	return append([]uint64(nil), m.offerIdx[listingID]...), nil
}

func (m *mockState) OrderPut(o *Order) error {
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *mockState) OrderGet(id uint64) (*Order, bool) {
	o, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (m *mockState) OrderNextID() (uint64, error) { return m.next("order") }

func (m *mockState) BidPut(b *BidCommitment) error {
	if m.bids[b.ListingID] == nil {
		m.bids[b.ListingID] = make(map[[20]byte]*BidCommitment)
	}
	if _, exists := m.bids[b.ListingID][b.Bidder]; !exists {
		m.bidOrder[b.ListingID] = append(m.bidOrder[b.ListingID], b.Bidder)
	}
	m.bids[b.ListingID][b.Bidder] = b.Clone()
	return nil
}

func (m *mockState) BidGet(listingID uint64, bidder [20]byte) (*BidCommitment, bool) {
	b, ok := m.bids[listingID][bidder]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (m *mockState) BidDelete(listingID uint64, bidder [20]byte) error {
	delete(m.bids[listingID], bidder)
	order := m.bidOrder[listingID]
	for i, existing := range order {
		if existing == bidder {
			m.bidOrder[listingID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockState) BidList(listingID uint64) ([]*BidCommitment, error) {
	var out []*BidCommitment
	for _, bidder := range m.bidOrder[listingID] {
		if b, ok := m.bids[listingID][bidder]; ok {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (m *mockState) MarketVaultAddress(token string) ([20]byte, error) {
	if token == "LBZ" {
		return newTestAddress(0xBB), nil
	}
	return newTestAddress(0xAA), nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return types.EnsureBalances(nil), nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) fund(addr [20]byte, token string, amount int64) {
	acc := types.EnsureBalances(m.accounts[addr])
	if token == "LBZ" {
		acc.BalanceLBZ = big.NewInt(amount)
	} else {
		acc.BalanceBZR = big.NewInt(amount)
	}
	m.accounts[addr] = acc
}

func (m *mockState) balance(addr [20]byte, token string) *big.Int {
	acc := types.EnsureBalances(m.accounts[addr])
	if token == "LBZ" {
		return acc.BalanceLBZ
	}
	return acc.BalanceBZR
}

type captureEmitter struct {
	types []string
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.types = append(c.types, evt.EventType())
}

func (c *captureEmitter) has(eventType string) bool {
	for _, t := range c.types {
		if t == eventType {
			return true
		}
	}
	return false
}

type escrowCall struct {
	listingID, orderID                uint64
	buyer, seller                     [20]byte
	token                             string
	total, sellerAmount, fee, royalty *big.Int
	royaltyReceiver                   [20]byte
}

type mockEscrow struct {
	vault    [20]byte
	calls    []escrowCall
	existing map[uint64]bool
}

func newMockEscrow() *mockEscrow {
	return &mockEscrow{vault: newTestAddress(0xEE), existing: make(map[uint64]bool)}
}

func (m *mockEscrow) VaultAddress(token string) ([20]byte, error) {
	return m.vault, nil
}

func (m *mockEscrow) CanCreateFromSale(listingID uint64) error {
	if m.existing[listingID] {
		return errStatef("escrow for listing %d already exists", listingID)
	}
	return nil
}

func (m *mockEscrow) CreateFromSale(listingID, orderID uint64, buyer, seller [20]byte, token string, total, sellerAmount, fee, royalty *big.Int, royaltyReceiver [20]byte) error {
	if err := m.CanCreateFromSale(listingID); err != nil {
		return err
	}
	m.existing[listingID] = true
	m.calls = append(m.calls, escrowCall{
		listingID: listingID, orderID: orderID,
		buyer: buyer, seller: seller, token: token,
		total: new(big.Int).Set(total), sellerAmount: new(big.Int).Set(sellerAmount),
		fee: new(big.Int).Set(fee), royalty: new(big.Int).Set(royalty),
		royaltyReceiver: royaltyReceiver,
	})
	return nil
}

const testNow int64 = 1_700_000_000

func newTestEngine(t *testing.T) (*Engine, *mockState, *captureEmitter) {
	t.Helper()
	state := newMockState()
	emitter := &captureEmitter{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEmitter(emitter)
	engine.SetFeeTreasury(newTestAddress(0xFE))
	engine.SetNowFunc(func() int64 { return testNow })
	return engine, state, emitter
}

func newTestTiers(entries map[[20]byte]uint8) reputation.TierSource {
	src := reputation.NewStaticSource()
	for addr, tier := range entries {
		src.SetTier(addr, tier)
	}
	return src
}

func mustCreateFixed(t *testing.T, engine *Engine, seller [20]byte, price int64, quantity uint64) *Listing {
	t.Helper()
	listing, err := engine.CreateListing(CreateListingParams{
		Seller:   seller,
		Token:    "BZR",
		Price:    big.NewInt(price),
		Quantity: quantity,
		Kind:     ItemPhysical,
		Sale:     SaleFixedPrice,
		MetaHash: [32]byte{1},
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return listing
}

func mustCreateAuction(t *testing.T, engine *Engine, seller [20]byte, price, reserve int64, endTime int64) *Listing {
	t.Helper()
	listing, err := engine.CreateListing(CreateListingParams{
		Seller:   seller,
		Token:    "BZR",
		Price:    big.NewInt(price),
		Quantity: 1,
		Kind:     ItemUniqueAsset,
		Sale:     SaleAuction,
		EndTime:  endTime,
		Reserve:  big.NewInt(reserve),
		MetaHash: [32]byte{2},
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return listing
}
