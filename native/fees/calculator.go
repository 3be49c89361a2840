package fees

import (
	"math/big"
)

const (
	// BaseFeeBps is the platform fee before seller-tier reductions.
	BaseFeeBps uint32 = 250
	// RewardAssetBonusBps is the flat buyer discount for paying in LBZ.
	RewardAssetBonusBps uint32 = 50
	// MaxDiscountBps caps the stacked buyer discount.
	MaxDiscountBps uint32 = 250
	// MaxTier is the highest loyalty tier; inputs above it clamp down.
	MaxTier uint8 = 3

	bpsDenominator int64 = 10_000
)

var (
	tierDiscountBps     = [4]uint32{0, 50, 100, 200}
	tierFeeReductionBps = [4]uint32{0, 25, 50, 100}
)

// Input captures the context required to price a settlement.
type Input struct {
	Gross              *big.Int
	BuyerTier          uint8
	SellerTier         uint8
	RoyaltyBps         uint32
	PayWithRewardAsset bool
}

// Breakdown is the exact three-way split of a settlement. Total is the
// amount the buyer actually pays (gross minus the buyer discount) and always
// equals Seller+Fee+Royalty with no rounding leakage.
type Breakdown struct {
	Gross       *big.Int
	Discount    *big.Int
	Total       *big.Int
	Seller      *big.Int
	Fee         *big.Int
	Royalty     *big.Int
	DiscountBps uint32
	FeeBps      uint32
}

// BuyerDiscountBps returns the stacked discount for the buyer tier, including
// the flat bonus for paying in the reward asset, capped at MaxDiscountBps.
func BuyerDiscountBps(tier uint8, payWithRewardAsset bool) uint32 {
	if tier > MaxTier {
		tier = MaxTier
	}
	bps := tierDiscountBps[tier]
	if payWithRewardAsset {
		bps += RewardAssetBonusBps
	}
	if bps > MaxDiscountBps {
		bps = MaxDiscountBps
	}
	return bps
}

// SellerFeeBps returns the platform fee for the seller tier. The reduction is
// monotonic in the tier and never drives the fee below zero.
func SellerFeeBps(tier uint8) uint32 {
	if tier > MaxTier {
		tier = MaxTier
	}
	reduction := tierFeeReductionBps[tier]
	if reduction >= BaseFeeBps {
		return 0
	}
	return BaseFeeBps - reduction
}

func bpsShare(total *big.Int, bps uint32) *big.Int {
	if total == nil || total.Sign() <= 0 || bps == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Mul(total, big.NewInt(int64(bps)))
	return share.Div(share, big.NewInt(bpsDenominator))
}

// Calculate prices a settlement. It is a pure function: no state is read or
// written. The returned split satisfies Seller+Fee+Royalty == Total exactly;
// when fee plus royalty would exceed the total the royalty is clamped first,
// then the fee, rather than letting the seller amount underflow.
func Calculate(in Input) Breakdown {
	out := Breakdown{
		Gross:       big.NewInt(0),
		Discount:    big.NewInt(0),
		Total:       big.NewInt(0),
		Seller:      big.NewInt(0),
		Fee:         big.NewInt(0),
		Royalty:     big.NewInt(0),
		DiscountBps: BuyerDiscountBps(in.BuyerTier, in.PayWithRewardAsset),
		FeeBps:      SellerFeeBps(in.SellerTier),
	}
	if in.Gross == nil || in.Gross.Sign() <= 0 {
		return out
	}
	out.Gross = new(big.Int).Set(in.Gross)
	out.Discount = bpsShare(out.Gross, out.DiscountBps)
	out.Total = new(big.Int).Sub(out.Gross, out.Discount)
	if out.Total.Sign() <= 0 {
		out.Total = big.NewInt(0)
		return out
	}
	out.Fee = bpsShare(out.Total, out.FeeBps)
	out.Royalty = bpsShare(out.Total, in.RoyaltyBps)
	combined := new(big.Int).Add(out.Fee, out.Royalty)
	if combined.Cmp(out.Total) > 0 {
		overflow := new(big.Int).Sub(combined, out.Total)
		if out.Royalty.Cmp(overflow) >= 0 {
			out.Royalty = new(big.Int).Sub(out.Royalty, overflow)
		} else {
			overflow.Sub(overflow, out.Royalty)
			out.Royalty = big.NewInt(0)
			out.Fee = new(big.Int).Sub(out.Fee, overflow)
		}
	}
	out.Seller = new(big.Int).Sub(out.Total, new(big.Int).Add(out.Fee, out.Royalty))
	return out
}
