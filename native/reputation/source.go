package reputation

import "math/big"

// TierSource exposes the reputation collaborator consumed by the marketplace
// engines. Scoring itself lives outside this repository; the engines only
// ever read a tier or a voting-power score.
type TierSource interface {
	LoyaltyTier(addr [20]byte) uint8
	VotingPower(addr [20]byte) *big.Int
}

// StaticSource is a fixed map-backed TierSource used for wiring and tests.
type StaticSource struct {
	Tiers  map[[20]byte]uint8
	Powers map[[20]byte]*big.Int
}

// NewStaticSource constructs an empty static source.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		Tiers:  make(map[[20]byte]uint8),
		Powers: make(map[[20]byte]*big.Int),
	}
}

// SetTier records the loyalty tier for an address.
func (s *StaticSource) SetTier(addr [20]byte, tier uint8) {
	if s.Tiers == nil {
		s.Tiers = make(map[[20]byte]uint8)
	}
	s.Tiers[addr] = tier
}

// LoyaltyTier implements TierSource. Unknown addresses are tier zero.
func (s *StaticSource) LoyaltyTier(addr [20]byte) uint8 {
	if s == nil || s.Tiers == nil {
		return 0
	}
	return s.Tiers[addr]
}

// VotingPower implements TierSource. Unknown addresses have zero power.
func (s *StaticSource) VotingPower(addr [20]byte) *big.Int {
	if s == nil || s.Powers == nil {
		return big.NewInt(0)
	}
	power, ok := s.Powers[addr]
	if !ok || power == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(power)
}
