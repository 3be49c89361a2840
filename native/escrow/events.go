package escrow

import (
	"strconv"

	"bazaarchain/core/types"
	"bazaarchain/crypto"
)

const (
	EventTypeEscrowCreated  = "escrow.created"
	EventTypeEscrowApproved = "escrow.approved"
	EventTypeEscrowReleased = "escrow.released"
	EventTypeEscrowDisputed = "escrow.disputed"
	EventTypeEscrowResolved = "escrow.resolved"
)

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeEscrow(e)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["listingId"] = strconv.FormatUint(sanitized.ListingID, 10)
	attrs["orderId"] = strconv.FormatUint(sanitized.OrderID, 10)
	attrs["buyer"] = crypto.NewAddress(crypto.BZRPrefix, sanitized.Buyer[:]).String()
	attrs["seller"] = crypto.NewAddress(crypto.BZRPrefix, sanitized.Seller[:]).String()
	attrs["token"] = sanitized.Token
	attrs["amount"] = sanitized.Amount.String()
	attrs["buyerApproved"] = strconv.FormatBool(sanitized.BuyerApproved)
	attrs["sellerApproved"] = strconv.FormatBool(sanitized.SellerApproved)
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	if sanitized.Disputed {
		attrs["resolver"] = crypto.NewAddress(crypto.BZRPrefix, sanitized.Resolver[:]).String()
	}
	if sanitized.ResolvedAt != 0 {
		attrs["resolvedAt"] = strconv.FormatInt(sanitized.ResolvedAt, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewCreatedEvent returns the canonical payload for a newly created escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e) }

// NewApprovedEvent returns the payload emitted when one party approves.
func NewApprovedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowApproved, e) }

// NewReleasedEvent returns the payload emitted when funds leave custody
// after mutual approval.
func NewReleasedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowReleased, e) }

// NewDisputedEvent returns the payload emitted when a dispute opens.
func NewDisputedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowDisputed, e) }

// NewResolvedEvent returns the payload emitted when a resolver decides.
func NewResolvedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowResolved, e) }
