package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"bazaarchain/core/types"
	"bazaarchain/crypto"
)

const (
	EventTypeListingCreated      = "market.listing.created"
	EventTypeListingPriceUpdated = "market.listing.price_updated"
	EventTypeListingCancelled    = "market.listing.cancelled"
	EventTypeListingSold         = "market.listing.sold"
	EventTypeListingExpired      = "market.listing.expired"
	EventTypeBidCommitted        = "market.bid.committed"
	EventTypeBidWithdrawn        = "market.bid.withdrawn"
	EventTypeBidRevealed         = "market.bid.revealed"
	EventTypeAuctionExtended     = "market.auction.extended"
	EventTypeAuctionSettled      = "market.auction.settled"
	EventTypeOfferMade           = "market.offer.made"
	EventTypeOfferAccepted       = "market.offer.accepted"
	EventTypeOfferCancelled      = "market.offer.cancelled"
	EventTypeOfferWithdrawn      = "market.offer.withdrawn"
	EventTypeOrderCreated        = "market.order.created"
)

func addrAttr(addr [20]byte) string {
	return crypto.NewAddress(crypto.BZRPrefix, addr[:]).String()
}

func amountAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listingId"] = strconv.FormatUint(l.ID, 10)
	attrs["seller"] = addrAttr(l.Seller)
	attrs["token"] = l.Token
	attrs["price"] = amountAttr(l.Price)
	attrs["remaining"] = strconv.FormatUint(l.Remaining, 10)
	attrs["saleKind"] = strconv.FormatUint(uint64(l.Sale), 10)
	attrs["status"] = strconv.FormatUint(uint64(l.Status), 10)
	if l.Sale == SaleAuction {
		attrs["endTime"] = strconv.FormatInt(l.EndTime, 10)
		attrs["reserve"] = amountAttr(l.Reserve)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l)
}

// NewListingPriceUpdatedEvent returns the payload emitted after a fixed-price
// update.
func NewListingPriceUpdatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingPriceUpdated, l)
}

// NewListingCancelledEvent returns the payload emitted when a seller cancels.
func NewListingCancelledEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCancelled, l)
}

// NewListingSoldEvent returns the payload emitted when the last unit sells.
func NewListingSoldEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingSold, l)
}

// NewListingExpiredEvent returns the payload emitted when an auction closes
// without a qualifying bid.
func NewListingExpiredEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingExpired, l)
}

// NewBidCommittedEvent returns the payload for a sealed-bid commitment. Only
// the deposit is public; the amount stays hidden until reveal.
func NewBidCommittedEvent(b *BidCommitment) *types.Event {
	attrs := make(map[string]string)
	if b == nil {
		return &types.Event{Type: EventTypeBidCommitted, Attributes: attrs}
	}
	attrs["listingId"] = strconv.FormatUint(b.ListingID, 10)
	attrs["bidder"] = addrAttr(b.Bidder)
	attrs["commitment"] = hex.EncodeToString(b.Hash[:])
	attrs["deposit"] = amountAttr(b.Deposit)
	return &types.Event{Type: EventTypeBidCommitted, Attributes: attrs}
}

// NewBidWithdrawnEvent returns the payload emitted when a bidder reclaims an
// unrevealed commitment.
func NewBidWithdrawnEvent(listingID uint64, bidder [20]byte, deposit *big.Int) *types.Event {
	return &types.Event{Type: EventTypeBidWithdrawn, Attributes: map[string]string{
		"listingId": strconv.FormatUint(listingID, 10),
		"bidder":    addrAttr(bidder),
		"deposit":   amountAttr(deposit),
	}}
}

// NewBidRevealedEvent returns the payload for a successful reveal.
func NewBidRevealedEvent(listingID uint64, bidder [20]byte, amount *big.Int, leading bool) *types.Event {
	return &types.Event{Type: EventTypeBidRevealed, Attributes: map[string]string{
		"listingId": strconv.FormatUint(listingID, 10),
		"bidder":    addrAttr(bidder),
		"amount":    amountAttr(amount),
		"leading":   strconv.FormatBool(leading),
	}}
}

// NewAuctionExtendedEvent returns the payload for an anti-sniping extension.
func NewAuctionExtendedEvent(listingID uint64, endTime int64) *types.Event {
	return &types.Event{Type: EventTypeAuctionExtended, Attributes: map[string]string{
		"listingId": strconv.FormatUint(listingID, 10),
		"endTime":   strconv.FormatInt(endTime, 10),
	}}
}

// NewAuctionSettledEvent returns the payload for a settled auction.
func NewAuctionSettledEvent(l *Listing, winner [20]byte, amount *big.Int, orderID uint64) *types.Event {
	attrs := map[string]string{
		"winner":  addrAttr(winner),
		"amount":  amountAttr(amount),
		"orderId": strconv.FormatUint(orderID, 10),
	}
	if l != nil {
		attrs["listingId"] = strconv.FormatUint(l.ID, 10)
		attrs["seller"] = addrAttr(l.Seller)
		attrs["token"] = l.Token
	}
	return &types.Event{Type: EventTypeAuctionSettled, Attributes: attrs}
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["offerId"] = strconv.FormatUint(o.ID, 10)
	attrs["listingId"] = strconv.FormatUint(o.ListingID, 10)
	attrs["buyer"] = addrAttr(o.Buyer)
	attrs["amount"] = amountAttr(o.Amount)
	attrs["token"] = o.Token
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewOfferMadeEvent returns the payload for a new offer.
func NewOfferMadeEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferMade, o) }

// NewOfferAcceptedEvent returns the payload emitted when the seller accepts.
func NewOfferAcceptedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferAccepted, o) }

// NewOfferCancelledEvent returns the payload emitted when the buyer cancels.
func NewOfferCancelledEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferCancelled, o) }

// NewOfferWithdrawnEvent returns the payload emitted when an expired offer is
// reclaimed.
func NewOfferWithdrawnEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferWithdrawn, o) }

// NewOrderCreatedEvent returns the immutable-receipt payload.
func NewOrderCreatedEvent(o *Order) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: EventTypeOrderCreated, Attributes: attrs}
	}
	attrs["orderId"] = strconv.FormatUint(o.ID, 10)
	attrs["listingId"] = strconv.FormatUint(o.ListingID, 10)
	attrs["buyer"] = addrAttr(o.Buyer)
	attrs["seller"] = addrAttr(o.Seller)
	attrs["amount"] = amountAttr(o.Amount)
	attrs["token"] = o.Token
	attrs["quantity"] = strconv.FormatUint(o.Quantity, 10)
	attrs["createdAt"] = strconv.FormatInt(o.CreatedAt, 10)
	return &types.Event{Type: EventTypeOrderCreated, Attributes: attrs}
}
