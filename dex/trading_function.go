package dex

import (
	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/codec"
	"github.com/canopy-network/batchdex/lib/fixpoint"
)

/*
	A trading function prices a position at a fixed ratio p/q with a fee in basis points
	Trading delta_1 of asset 1 yields lambda_2 = delta_1 * gamma * p / q of asset 2, where gamma = 1 - fee/10000,
	capped by the reserve of asset 2 the position holds

	Rounding is explicit and always in favor of the position:
	- outputs round down
	- inputs required to produce a given output round up
*/

const (
	FeeDenominator   = 10_000  // fees are expressed in basis points
	MaxFee           = 5_000   // the largest fee a position may charge
	MaxPOrQ          = 1 << 60 // the largest p or q a position may use
	MaxReserveAmount = 1 << 62 // the largest reserve of either asset a position may hold
)

// Reserves are the balances of asset 1 and asset 2 held by a position, relative to its canonical pair
type Reserves struct {
	R1 uint64 `json:"r1"`
	R2 uint64 `json:"r2"`
}

// Flip() swaps the two sides
func (r Reserves) Flip() Reserves { return Reserves{R1: r.R2, R2: r.R1} }

// BareTradingFunction is the pricing rule without its pair
type BareTradingFunction struct {
	Fee uint32 `json:"fee"` // basis points
	P   uint64 `json:"p"`
	Q   uint64 `json:"q"`
}

// Flip() prices the opposite direction
func (b BareTradingFunction) Flip() BareTradingFunction {
	return BareTradingFunction{Fee: b.Fee, P: b.Q, Q: b.P}
}

// Gamma() is the fraction of the input that is traded after the fee
func (b BareTradingFunction) Gamma() (fixpoint.U128x128, lib.ErrorI) {
	if b.Fee > FeeDenominator {
		return fixpoint.Zero(), ErrInvalidTradingFunction("fee above 100%")
	}
	return fixpoint.Ratio(uint64(FeeDenominator-b.Fee), FeeDenominator)
}

// EffectivePrice() is the amount of input required per unit of output, fee included
func (b BareTradingFunction) EffectivePrice() (fixpoint.U128x128, lib.ErrorI) {
	gamma, err := b.Gamma()
	if err != nil {
		return fixpoint.Zero(), err
	}
	ratio, err := fixpoint.Ratio(b.Q, b.P)
	if err != nil {
		return fixpoint.Zero(), err
	}
	return ratio.Div(gamma)
}

// EffectivePriceInv() is the amount of output received per unit of input, fee included
func (b BareTradingFunction) EffectivePriceInv() (fixpoint.U128x128, lib.ErrorI) {
	gamma, err := b.Gamma()
	if err != nil {
		return fixpoint.Zero(), err
	}
	ratio, err := fixpoint.Ratio(b.P, b.Q)
	if err != nil {
		return fixpoint.Zero(), err
	}
	return ratio.Mul(gamma)
}

// Fill() trades delta_1 of asset 1 for asset 2 against the reserves
// if the reserves of asset 2 can't cover the trade, the position is filled to exhaustion and
// the part of delta_1 that couldn't be traded is returned as unfilled
func (b BareTradingFunction) Fill(delta1 uint64, r Reserves) (unfilled uint64, newReserves Reserves, lambda2 uint64, err lib.ErrorI) {
	// zero trades are no-ops
	if delta1 == 0 {
		return 0, r, 0, nil
	}
	effInv, err := b.EffectivePriceInv()
	if err != nil {
		return
	}
	// the output the trade would receive with unbounded reserves
	tentative, err := fixpoint.FromUint64(delta1).Mul(effInv)
	if err != nil {
		return
	}
	r2 := fixpoint.FromUint64(r.R2)
	if tentative.Cmp(r2) <= 0 {
		// fully filled; round the output down
		if lambda2, err = tentative.RoundDown().Uint64(); err != nil {
			return
		}
		r1, e := addUint64(r.R1, delta1)
		if e != nil {
			return 0, r, 0, e
		}
		return 0, Reserves{R1: r1, R2: r.R2 - lambda2}, lambda2, nil
	}
	// partially filled; the input needed to drain the reserves is rounded up
	fillable, err := b.inputFor(r.R2)
	if err != nil {
		return
	}
	if fillable > delta1 {
		fillable = delta1
	}
	r1, err := addUint64(r.R1, fillable)
	if err != nil {
		return
	}
	return delta1 - fillable, Reserves{R1: r1, R2: 0}, r.R2, nil
}

// FillOutput() computes the input of asset 1 required to receive exactly lambda_2 of asset 2
// ok is false when the reserves can't cover lambda_2
func (b BareTradingFunction) FillOutput(r Reserves, lambda2 uint64) (newReserves Reserves, delta1 uint64, ok bool, err lib.ErrorI) {
	if lambda2 > r.R2 {
		return r, 0, false, nil
	}
	if lambda2 == 0 {
		return r, 0, true, nil
	}
	if delta1, err = b.inputFor(lambda2); err != nil {
		return
	}
	r1, err := addUint64(r.R1, delta1)
	if err != nil {
		return
	}
	return Reserves{R1: r1, R2: r.R2 - lambda2}, delta1, true, nil
}

// inputFor() is ceil(output * effective price)
func (b BareTradingFunction) inputFor(output uint64) (uint64, lib.ErrorI) {
	price, err := b.EffectivePrice()
	if err != nil {
		return 0, err
	}
	required, err := fixpoint.FromUint64(output).Mul(price)
	if err != nil {
		return 0, err
	}
	if required, err = required.RoundUp(); err != nil {
		return 0, err
	}
	return required.Uint64()
}

// TradingFunction is a pricing rule bound to a trading pair
type TradingFunction struct {
	Pair      TradingPair         `json:"pair"`
	Component BareTradingFunction `json:"component"`
}

// Orient() returns the pricing rule seen from the input asset
// flipped is true when the input is asset 2 and reserves must be flipped too
func (t TradingFunction) Orient(start AssetId) (bare BareTradingFunction, flipped bool, err lib.ErrorI) {
	switch start {
	case t.Pair.Asset1:
		return t.Component, false, nil
	case t.Pair.Asset2:
		return t.Component.Flip(), true, nil
	default:
		return BareTradingFunction{}, false, ErrAssetMismatch(start, t.Pair)
	}
}

// MatchesInput() is true if the asset can be sold to this function
func (t TradingFunction) MatchesInput(a AssetId) bool { return t.Pair.Contains(a) }

// Fill() trades the input against the reserves in whichever direction the input asset implies
func (t TradingFunction) Fill(input Value, r Reserves) (unfilled Value, newReserves Reserves, output Value, err lib.ErrorI) {
	bare, flipped, err := t.Orient(input.AssetId)
	if err != nil {
		return
	}
	end := t.Pair.Asset2
	if flipped {
		r, end = r.Flip(), t.Pair.Asset1
	}
	u, nr, out, err := bare.Fill(input.Amount, r)
	if err != nil {
		return
	}
	if flipped {
		nr = nr.Flip()
	}
	return Value{Amount: u, AssetId: input.AssetId}, nr, Value{Amount: out, AssetId: end}, nil
}

// FillOutput() computes the input required to receive exactly the output
func (t TradingFunction) FillOutput(r Reserves, output Value) (newReserves Reserves, input Value, ok bool, err lib.ErrorI) {
	start := t.Pair.Asset1
	if output.AssetId == t.Pair.Asset1 {
		start = t.Pair.Asset2
	}
	bare, flipped, err := t.Orient(start)
	if err != nil || !t.Pair.Contains(output.AssetId) {
		return r, Value{}, false, ErrAssetMismatch(output.AssetId, t.Pair)
	}
	if flipped {
		r = r.Flip()
	}
	nr, in, ok, err := bare.FillOutput(r, output.Amount)
	if err != nil || !ok {
		return Reserves{}, Value{}, false, err
	}
	if flipped {
		nr = nr.Flip()
	}
	return nr, Value{Amount: in, AssetId: start}, true, nil
}

// Bytes() is the canonical encoding used in the position id preimage
func (t TradingFunction) Bytes() []byte {
	return codec.NewEncoder().
		Bytes(1, t.Pair.Asset1[:]).
		Bytes(2, t.Pair.Asset2[:]).
		Uint64(3, uint64(t.Component.Fee)).
		Uint64(4, t.Component.P).
		Uint64(5, t.Component.Q).
		Encode()
}

// addUint64() adds with an overflow check
func addUint64(a, b uint64) (uint64, lib.ErrorI) {
	if a+b < a {
		return 0, lib.ErrOverflow()
	}
	return a + b, nil
}
