package state

var (
	accountPrefix      = []byte("account/")
	counterPrefix      = []byte("counter/")
	listingPrefix      = []byte("market/listing/")
	activeListingsKey  = []byte("market/listing/active")
	offerPrefix        = []byte("market/offer/")
	offerIndexPrefix   = []byte("market/offer-index/")
	orderPrefix        = []byte("market/order/")
	bidPrefix          = []byte("market/bid/")
	bidIndexPrefix     = []byte("market/bid-index/")
	escrowPrefix       = []byte("escrow/record/")
	counterListingName = []byte("listing")
	counterOfferName   = []byte("offer")
	counterOrderName   = []byte("order")
)
