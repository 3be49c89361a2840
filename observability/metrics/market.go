package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type MarketMetrics struct {
	listingsCreated  *prometheus.CounterVec
	purchasesSettled prometheus.Counter
	bidsRevealed     *prometheus.CounterVec
	auctionsSettled  *prometheus.CounterVec
	offersAccepted   prometheus.Counter
	escrowsResolved  *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			listingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_listings_created_total",
				Help: "Count of listings created by sale kind.",
			}, []string{"sale_kind"}),
			purchasesSettled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_purchases_settled_total",
				Help: "Count of fixed-price purchases settled.",
			}),
			bidsRevealed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_bids_revealed_total",
				Help: "Count of revealed sealed bids by outcome.",
			}, []string{"outcome"}),
			auctionsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_auctions_settled_total",
				Help: "Count of auction settlements by result.",
			}, []string{"result"}),
			offersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_offers_accepted_total",
				Help: "Count of offers accepted by sellers.",
			}),
			escrowsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "escrow_resolutions_total",
				Help: "Count of escrow resolutions by path.",
			}, []string{"path"}),
		}
		prometheus.MustRegister(
			marketRegistry.listingsCreated,
			marketRegistry.purchasesSettled,
			marketRegistry.bidsRevealed,
			marketRegistry.auctionsSettled,
			marketRegistry.offersAccepted,
			marketRegistry.escrowsResolved,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveListingCreated(saleKind string) {
	if m == nil {
		return
	}
	if saleKind == "" {
		saleKind = "unknown"
	}
	m.listingsCreated.WithLabelValues(saleKind).Inc()
}

func (m *MarketMetrics) ObservePurchaseSettled() {
	if m == nil {
		return
	}
	m.purchasesSettled.Inc()
}

func (m *MarketMetrics) ObserveBidRevealed(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.bidsRevealed.WithLabelValues(outcome).Inc()
}

func (m *MarketMetrics) ObserveAuctionSettled(result string) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.auctionsSettled.WithLabelValues(result).Inc()
}

func (m *MarketMetrics) ObserveOfferAccepted() {
	if m == nil {
		return
	}
	m.offersAccepted.Inc()
}

func (m *MarketMetrics) ObserveEscrowResolved(path string) {
	if m == nil {
		return
	}
	if path == "" {
		path = "unknown"
	}
	m.escrowsResolved.WithLabelValues(path).Inc()
}
