package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bazaarchain/config"
	"bazaarchain/core/events"
	"bazaarchain/core/types"
	"bazaarchain/crypto"
	"bazaarchain/native/escrow"
	"bazaarchain/native/market"
	"bazaarchain/native/reputation"
	"bazaarchain/observability/logging"
	"bazaarchain/observability/metrics"
	"bazaarchain/state"
	"bazaarchain/storage"
)

const envVar = "BZR_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("bazaard", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}

	nodeKey, err := loadNodeKey(cfg.DataDir)
	if err != nil {
		logger.Error("Failed to load node key", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "chaindata"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	emitter := newNodeEmitter(logger)
	tiers := reputation.NewStaticSource()

	treasury, err := cfg.FeeTreasuryAddress()
	if err != nil {
		logger.Error("Failed to decode fee treasury", slog.Any("error", err))
		os.Exit(1)
	}
	if treasury == ([20]byte{}) {
		logger.Error("FeeTreasury must be configured")
		os.Exit(1)
	}
	resolvers, err := cfg.ResolverAddresses()
	if err != nil {
		logger.Error("Failed to decode resolvers", slog.Any("error", err))
		os.Exit(1)
	}

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(manager)
	escrowEngine.SetEmitter(emitter)
	escrowEngine.SetFeeTreasury(treasury)
	escrowEngine.SetPauses(cfg)
	escrowEngine.SetResolverSource(&resolverPool{resolvers: resolvers})

	marketEngine := market.NewEngine()
	marketEngine.SetState(manager)
	marketEngine.SetEmitter(emitter)
	marketEngine.SetFeeTreasury(treasury)
	marketEngine.SetPauses(cfg)
	marketEngine.SetEscrow(escrowEngine)
	marketEngine.SetTierSource(tiers)
	marketEngine.SetMinListingTier(cfg.MinListingTier)

	go serveMetrics(logger, cfg.MetricsAddress)

	logger.Info("bazaard started",
		slog.String("network", cfg.NetworkName),
		slog.String("dataDir", cfg.DataDir),
		slog.String("nodeAddress", nodeKey.PubKey().Address().String()),
		slog.Int("resolvers", len(resolvers)),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("bazaard shutting down")
}

// loadNodeKey reads the node identity key from the data directory, generating
// and persisting a fresh one on first start. The derived address identifies
// the node in logs and operator tooling.
func loadNodeKey(dataDir string) (*crypto.PrivateKey, error) {
	path := filepath.Join(dataDir, "node.key")
	raw, err := os.ReadFile(path)
	if err == nil {
		return crypto.PrivateKeyFromBytes(raw)
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, key.Bytes(), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("Metrics server stopped", slog.Any("error", err))
	}
}

// resolverPool hands out dispute resolvers round-robin from the configured
// set.
type resolverPool struct {
	resolvers [][20]byte
	next      int
}

func (p *resolverPool) AssignResolver(listingID uint64, buyer, seller [20]byte) ([20]byte, error) {
	if p == nil || len(p.resolvers) == 0 {
		return [20]byte{}, fmt.Errorf("no dispute resolvers configured")
	}
	resolver := p.resolvers[p.next%len(p.resolvers)]
	p.next++
	return resolver, nil
}

// nodeEmitter logs every engine event and feeds the operation counters.
type nodeEmitter struct {
	logger *slog.Logger
}

func newNodeEmitter(logger *slog.Logger) *nodeEmitter {
	return &nodeEmitter{logger: logger}
}

type payloadEvent interface {
	Event() *types.Event
}

func (n *nodeEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	eventType := evt.EventType()
	attrs := []any{slog.String("event", eventType)}
	var payload *types.Event
	if carrier, ok := evt.(payloadEvent); ok {
		payload = carrier.Event()
	}
	if payload != nil {
		for key, value := range payload.Attributes {
			attrs = append(attrs, slog.String(key, value))
		}
	}
	n.logger.Info("event", attrs...)
	observe(eventType, payload)
}

func observe(eventType string, payload *types.Event) {
	m := metrics.Market()
	switch eventType {
	case market.EventTypeListingCreated:
		saleKind := ""
		if payload != nil {
			saleKind = payload.Attributes["saleKind"]
		}
		m.ObserveListingCreated(saleKind)
	case market.EventTypeOrderCreated:
		m.ObservePurchaseSettled()
	case market.EventTypeBidRevealed:
		outcome := "losing"
		if payload != nil && payload.Attributes["leading"] == "true" {
			outcome = "leading"
		}
		m.ObserveBidRevealed(outcome)
	case market.EventTypeAuctionSettled:
		m.ObserveAuctionSettled("sold")
	case market.EventTypeListingExpired:
		m.ObserveAuctionSettled("expired")
	case market.EventTypeOfferAccepted:
		m.ObserveOfferAccepted()
	case escrow.EventTypeEscrowReleased:
		m.ObserveEscrowResolved("released")
	case escrow.EventTypeEscrowResolved:
		m.ObserveEscrowResolved("arbitrated")
	}
}
