package state

import (
	"encoding/binary"
	"math/big"
	"sort"

	"bazaarchain/native/market"
)

func idBytes(id uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, id)
	return buf
}

type storedListing struct {
	ID              uint64
	Seller          [20]byte
	Token           string
	Price           *big.Int
	Remaining       uint64
	Kind            uint8
	Sale            uint8
	Status          uint8
	StartTime       uint64
	EndTime         uint64
	RevealWindow    uint64
	HighestBid      *big.Int
	HighestBidder   [20]byte
	Reserve         *big.Int
	MinIncrementBps uint32
	RoyaltyBps      uint32
	RoyaltyReceiver [20]byte
	Escrowed        bool
	MetaHash        [32]byte
	CreatedAt       uint64
}

func listingToStored(l *market.Listing) *storedListing {
	return &storedListing{
		ID:              l.ID,
		Seller:          l.Seller,
		Token:           l.Token,
		Price:           toBig(l.Price),
		Remaining:       l.Remaining,
		Kind:            uint8(l.Kind),
		Sale:            uint8(l.Sale),
		Status:          uint8(l.Status),
		StartTime:       uint64(l.StartTime),
		EndTime:         uint64(l.EndTime),
		RevealWindow:    uint64(l.RevealWindow),
		HighestBid:      toBig(l.HighestBid),
		HighestBidder:   l.HighestBidder,
		Reserve:         toBig(l.Reserve),
		MinIncrementBps: l.MinIncrementBps,
		RoyaltyBps:      l.RoyaltyBps,
		RoyaltyReceiver: l.RoyaltyReceiver,
		Escrowed:        l.Escrowed,
		MetaHash:        l.MetaHash,
		CreatedAt:       uint64(l.CreatedAt),
	}
}

func listingFromStored(s *storedListing) *market.Listing {
	return &market.Listing{
		ID:              s.ID,
		Seller:          s.Seller,
		Token:           s.Token,
		Price:           fromBig(s.Price),
		Remaining:       s.Remaining,
		Kind:            market.ItemKind(s.Kind),
		Sale:            market.SaleKind(s.Sale),
		Status:          market.ListingStatus(s.Status),
		StartTime:       int64(s.StartTime),
		EndTime:         int64(s.EndTime),
		RevealWindow:    int64(s.RevealWindow),
		HighestBid:      fromBig(s.HighestBid),
		HighestBidder:   s.HighestBidder,
		Reserve:         fromBig(s.Reserve),
		MinIncrementBps: s.MinIncrementBps,
		RoyaltyBps:      s.RoyaltyBps,
		RoyaltyReceiver: s.RoyaltyReceiver,
		Escrowed:        s.Escrowed,
		MetaHash:        s.MetaHash,
		CreatedAt:       int64(s.CreatedAt),
	}
}

// ListingPut persists a sanitized listing record.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	return m.putRecord(kvKey(listingPrefix, idBytes(sanitized.ID)), listingToStored(sanitized))
}

// ListingGet loads the listing with the given identifier.
func (m *Manager) ListingGet(id uint64) (*market.Listing, bool) {
	stored := new(storedListing)
	ok, err := m.getRecord(kvKey(listingPrefix, idBytes(id)), stored)
	if err != nil || !ok {
		return nil, false
	}
	return listingFromStored(stored), true
}

// ListingNextID allocates the next listing identifier.
func (m *Manager) ListingNextID() (uint64, error) {
	return m.nextCounter(counterListingName)
}

func (m *Manager) loadActiveListings() ([]uint64, error) {
	var ids []uint64
	if _, err := m.getRecord(kvKey(activeListingsKey), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (m *Manager) writeActiveListings(ids []uint64) error {
	return m.putRecord(kvKey(activeListingsKey), ids)
}

// ActiveListingAdd records id in the active-listings index. The index keeps
// lookups off the full identifier range.
func (m *Manager) ActiveListingAdd(id uint64) error {
	ids, err := m.loadActiveListings()
	if err != nil {
		return err
	}
	pos := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if pos < len(ids) && ids[pos] == id {
		return nil
	}
	ids = append(ids, 0)
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = id
	return m.writeActiveListings(ids)
}

// ActiveListingRemove drops id from the active-listings index.
func (m *Manager) ActiveListingRemove(id uint64) error {
	ids, err := m.loadActiveListings()
	if err != nil {
		return err
	}
	pos := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if pos == len(ids) || ids[pos] != id {
		return nil
	}
	return m.writeActiveListings(append(ids[:pos], ids[pos+1:]...))
}

// ActiveListings returns the identifiers of every active listing in
// ascending order.
func (m *Manager) ActiveListings() ([]uint64, error) {
	return m.loadActiveListings()
}

type storedOffer struct {
	ID        uint64
	ListingID uint64
	Buyer     [20]byte
	Amount    *big.Int
	Token     string
	CreatedAt uint64
	ExpiresAt uint64
	Accepted  bool
	Cancelled bool
}

// OfferPut persists an offer record keyed by its own identifier.
func (m *Manager) OfferPut(o *market.Offer) error {
	if o == nil {
		return errNilRecord
	}
	return m.putRecord(kvKey(offerPrefix, idBytes(o.ID)), &storedOffer{
		ID:        o.ID,
		ListingID: o.ListingID,
		Buyer:     o.Buyer,
		Amount:    toBig(o.Amount),
		Token:     o.Token,
		CreatedAt: uint64(o.CreatedAt),
		ExpiresAt: uint64(o.ExpiresAt),
		Accepted:  o.Accepted,
		Cancelled: o.Cancelled,
	})
}

// OfferGet loads the offer with the given identifier.
func (m *Manager) OfferGet(id uint64) (*market.Offer, bool) {
	stored := new(storedOffer)
	ok, err := m.getRecord(kvKey(offerPrefix, idBytes(id)), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &market.Offer{
		ID:        stored.ID,
		ListingID: stored.ListingID,
		Buyer:     stored.Buyer,
		Amount:    fromBig(stored.Amount),
		Token:     stored.Token,
		CreatedAt: int64(stored.CreatedAt),
		ExpiresAt: int64(stored.ExpiresAt),
		Accepted:  stored.Accepted,
		Cancelled: stored.Cancelled,
	}, true
}

// OfferNextID allocates the next offer identifier.
func (m *Manager) OfferNextID() (uint64, error) {
	return m.nextCounter(counterOfferName)
}

// OfferIndexAdd links an offer to its listing for listing-scoped traversal.
func (m *Manager) OfferIndexAdd(listingID, offerID uint64) error {
	key := kvKey(offerIndexPrefix, idBytes(listingID))
	var ids []uint64
	if _, err := m.getRecord(key, &ids); err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == offerID {
			return nil
		}
	}
	return m.putRecord(key, append(ids, offerID))
}

// OfferIndexList returns the offer identifiers recorded against a listing.
func (m *Manager) OfferIndexList(listingID uint64) ([]uint64, error) {
	var ids []uint64
	if _, err := m.getRecord(kvKey(offerIndexPrefix, idBytes(listingID)), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

type storedOrder struct {
	ID        uint64
	ListingID uint64
	Buyer     [20]byte
	Seller    [20]byte
	Amount    *big.Int
	Token     string
	Quantity  uint64
	CreatedAt uint64
}

// OrderPut persists the immutable receipt. Existing orders are never
// overwritten.
func (m *Manager) OrderPut(o *market.Order) error {
	if o == nil {
		return errNilRecord
	}
	key := kvKey(orderPrefix, idBytes(o.ID))
	exists, err := m.hasRecord(key)
	if err != nil {
		return err
	}
	if exists {
		return errOrderImmutable
	}
	return m.putRecord(key, &storedOrder{
		ID:        o.ID,
		ListingID: o.ListingID,
		Buyer:     o.Buyer,
		Seller:    o.Seller,
		Amount:    toBig(o.Amount),
		Token:     o.Token,
		Quantity:  o.Quantity,
		CreatedAt: uint64(o.CreatedAt),
	})
}

// OrderGet loads the order with the given identifier.
func (m *Manager) OrderGet(id uint64) (*market.Order, bool) {
	stored := new(storedOrder)
	ok, err := m.getRecord(kvKey(orderPrefix, idBytes(id)), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &market.Order{
		ID:        stored.ID,
		ListingID: stored.ListingID,
		Buyer:     stored.Buyer,
		Seller:    stored.Seller,
		Amount:    fromBig(stored.Amount),
		Token:     stored.Token,
		Quantity:  stored.Quantity,
		CreatedAt: int64(stored.CreatedAt),
	}, true
}

// OrderNextID allocates the next order identifier.
func (m *Manager) OrderNextID() (uint64, error) {
	return m.nextCounter(counterOrderName)
}

type storedBid struct {
	ListingID uint64
	Bidder    [20]byte
	Hash      [32]byte
	Deposit   *big.Int
	Revealed  bool
	Amount    *big.Int
	CreatedAt uint64
}

func bidKey(listingID uint64, bidder [20]byte) []byte {
	return kvKey(bidPrefix, idBytes(listingID), bidder[:])
}

// BidPut persists a sealed-bid commitment and indexes the bidder against the
// listing.
func (m *Manager) BidPut(b *market.BidCommitment) error {
	if b == nil {
		return errNilRecord
	}
	if err := m.putRecord(bidKey(b.ListingID, b.Bidder), &storedBid{
		ListingID: b.ListingID,
		Bidder:    b.Bidder,
		Hash:      b.Hash,
		Deposit:   toBig(b.Deposit),
		Revealed:  b.Revealed,
		Amount:    toBig(b.Amount),
		CreatedAt: uint64(b.CreatedAt),
	}); err != nil {
		return err
	}
	return m.bidIndexAdd(b.ListingID, b.Bidder)
}

// BidGet loads the commitment of a bidder on a listing.
func (m *Manager) BidGet(listingID uint64, bidder [20]byte) (*market.BidCommitment, bool) {
	stored := new(storedBid)
	ok, err := m.getRecord(bidKey(listingID, bidder), stored)
	if err != nil || !ok {
		return nil, false
	}
	return &market.BidCommitment{
		ListingID: stored.ListingID,
		Bidder:    stored.Bidder,
		Hash:      stored.Hash,
		Deposit:   fromBig(stored.Deposit),
		Revealed:  stored.Revealed,
		Amount:    fromBig(stored.Amount),
		CreatedAt: int64(stored.CreatedAt),
	}, true
}

// BidDelete removes a commitment and its index entry.
func (m *Manager) BidDelete(listingID uint64, bidder [20]byte) error {
	if err := m.deleteRecord(bidKey(listingID, bidder)); err != nil {
		return err
	}
	return m.bidIndexRemove(listingID, bidder)
}

// BidList returns every outstanding commitment on a listing.
func (m *Manager) BidList(listingID uint64) ([]*market.BidCommitment, error) {
	var bidders [][20]byte
	if _, err := m.getRecord(kvKey(bidIndexPrefix, idBytes(listingID)), &bidders); err != nil {
		return nil, err
	}
	commitments := make([]*market.BidCommitment, 0, len(bidders))
	for _, bidder := range bidders {
		commitment, ok := m.BidGet(listingID, bidder)
		if !ok {
			continue
		}
		commitments = append(commitments, commitment)
	}
	return commitments, nil
}

func (m *Manager) bidIndexAdd(listingID uint64, bidder [20]byte) error {
	key := kvKey(bidIndexPrefix, idBytes(listingID))
	var bidders [][20]byte
	if _, err := m.getRecord(key, &bidders); err != nil {
		return err
	}
	for _, existing := range bidders {
		if existing == bidder {
			return nil
		}
	}
	return m.putRecord(key, append(bidders, bidder))
}

func (m *Manager) bidIndexRemove(listingID uint64, bidder [20]byte) error {
	key := kvKey(bidIndexPrefix, idBytes(listingID))
	var bidders [][20]byte
	if _, err := m.getRecord(key, &bidders); err != nil {
		return err
	}
	for i, existing := range bidders {
		if existing == bidder {
			return m.putRecord(key, append(bidders[:i], bidders[i+1:]...))
		}
	}
	return nil
}

// MarketVaultAddress returns the custody address holding bid and offer locks
// for a token.
func (m *Manager) MarketVaultAddress(token string) ([20]byte, error) {
	return moduleVault("market", token), nil
}
