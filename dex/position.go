package dex

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/crypto"
	"github.com/canopy-network/batchdex/lib/fixpoint"
)

// NonceSize is the length of the uniqueness salt of a position
const NonceSize = 32

// PositionId is the content derived identifier of a position: a hash of its trading function and nonce
type PositionId [crypto.HashSize]byte

// PositionIdFromHex() decodes a hex encoded position id
func PositionIdFromHex(s string) (id PositionId, err lib.ErrorI) {
	bz, err := lib.NewHexBytesFromString(s)
	if err != nil {
		return
	}
	if len(bz) != len(id) {
		return id, lib.ErrInvalidArgument()
	}
	copy(id[:], bz)
	return
}

func (p PositionId) Bytes() []byte                { return bytes.Clone(p[:]) }
func (p PositionId) String() string               { return hex.EncodeToString(p[:]) }
func (p PositionId) Compare(o PositionId) int     { return bytes.Compare(p[:], o[:]) }
func (p PositionId) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }
func (p *PositionId) UnmarshalJSON(bz []byte) error {
	var s string
	if err := json.Unmarshal(bz, &s); err != nil {
		return err
	}
	id, err := PositionIdFromHex(s)
	if err != nil {
		return err
	}
	*p = id
	return nil
}

// PositionStateKind is the lifecycle stage of a position
type PositionStateKind uint8

const (
	PositionOpened    PositionStateKind = iota // tradable, indexed by price
	PositionClosed                             // no longer tradable, reserves still held
	PositionWithdrawn                          // reserves released to the owner
	PositionClaimed                            // rewards claimed, terminal
)

func (k PositionStateKind) String() string {
	switch k {
	case PositionOpened:
		return "opened"
	case PositionClosed:
		return "closed"
	case PositionWithdrawn:
		return "withdrawn"
	case PositionClaimed:
		return "claimed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// PositionState is the lifecycle stage plus the sequence of withdrawals
type PositionState struct {
	Kind     PositionStateKind `json:"kind"`
	Sequence uint64            `json:"sequence"`
}

func (s PositionState) String() string {
	if s.Kind == PositionWithdrawn || s.Kind == PositionClaimed {
		return fmt.Sprintf("%s(%d)", s.Kind, s.Sequence)
	}
	return s.Kind.String()
}

// Position is a unit of concentrated liquidity at a fixed price
type Position struct {
	Phi         TradingFunction `json:"phi"`
	Nonce       lib.HexBytes    `json:"nonce"`
	State       PositionState   `json:"state"`
	Reserves    Reserves        `json:"reserves"`
	CloseOnFill bool            `json:"closeOnFill"`
}

// NewPosition() builds an opened position with the trading function p*Ra + q*Rb holding reserveA of a and reserveB of b
// the function and reserves are oriented into the canonical pair
func NewPosition(a, b AssetId, fee uint32, p, q, reserveA, reserveB uint64, nonce []byte) (*Position, lib.ErrorI) {
	pair, err := NewTradingPair(a, b)
	if err != nil {
		return nil, err
	}
	c, r := BareTradingFunction{Fee: fee, P: p, Q: q}, Reserves{R1: reserveA, R2: reserveB}
	if pair.Asset1 != a {
		c, r = c.Flip(), r.Flip()
	}
	position := &Position{
		Phi:      TradingFunction{Pair: pair, Component: c},
		Nonce:    bytes.Clone(nonce),
		State:    PositionState{Kind: PositionOpened},
		Reserves: r,
	}
	return position, position.Check()
}

// Id() hashes the trading function and the nonce under the position id domain
func (p *Position) Id() (id PositionId) {
	copy(id[:], crypto.HashWithDomain(crypto.DomainPositionId, p.Phi.Bytes(), p.Nonce))
	return
}

// Check() is the stateless validation of a position at open time
func (p *Position) Check() lib.ErrorI {
	if err := p.Phi.Pair.Check(); err != nil {
		return err
	}
	c := p.Phi.Component
	switch {
	case c.Fee > MaxFee:
		return ErrInvalidTradingFunction(fmt.Sprintf("fee %d exceeds the maximum of %d bps", c.Fee, MaxFee))
	case c.P == 0 || c.Q == 0:
		return ErrInvalidTradingFunction("p and q must be non-zero")
	case c.P > MaxPOrQ || c.Q > MaxPOrQ:
		return ErrInvalidTradingFunction("p or q exceeds the maximum")
	}
	switch {
	case p.Reserves.R1 > MaxReserveAmount || p.Reserves.R2 > MaxReserveAmount:
		return ErrInvalidReserves("reserve exceeds the maximum")
	case p.Reserves.R1 == 0 && p.Reserves.R2 == 0:
		return ErrInvalidReserves("both reserves are empty")
	}
	if p.State != (PositionState{Kind: PositionOpened}) {
		return ErrInvalidPositionState(p.Id(), p.State)
	}
	if len(p.Nonce) != NonceSize {
		return lib.ErrInvalidArgument()
	}
	return nil
}

// ReservesFor() is the reserve the position holds of the asset
func (p *Position) ReservesFor(a AssetId) (uint64, bool) {
	switch a {
	case p.Phi.Pair.Asset1:
		return p.Reserves.R1, true
	case p.Phi.Pair.Asset2:
		return p.Reserves.R2, true
	}
	return 0, false
}

// ReserveValues() lists both reserves as values
func (p *Position) ReserveValues() []Value {
	return []Value{
		{Amount: p.Reserves.R1, AssetId: p.Phi.Pair.Asset1},
		{Amount: p.Reserves.R2, AssetId: p.Phi.Pair.Asset2},
	}
}

// PriceFrom() is the effective price of the position when sold into from the start asset
func (p *Position) PriceFrom(start AssetId) (fixpoint.U128x128, lib.ErrorI) {
	bare, _, err := p.Phi.Orient(start)
	if err != nil {
		return fixpoint.Zero(), err
	}
	return bare.EffectivePrice()
}

// Execute() sells the input into the position and updates its reserves
// feeTaken is the output the fee withheld and remaining is the output reserve left after the trade
func (p *Position) Execute(input Value) (output Value, feeTaken, remaining uint64, unfilled Value, err lib.ErrorI) {
	bare, flipped, err := p.Phi.Orient(input.AssetId)
	if err != nil {
		return
	}
	unfilled, newReserves, output, err := p.Phi.Fill(input, p.Reserves)
	if err != nil {
		return
	}
	oriented := p.Reserves
	if flipped {
		oriented = oriented.Flip()
	}
	// the output the trade would have received with a zero fee, capped by the available reserve
	feeless, err := feelessOutput(bare, input.Amount-unfilled.Amount, oriented.R2)
	if err != nil {
		return
	}
	if feeless > output.Amount {
		feeTaken = feeless - output.Amount
	}
	p.Reserves = newReserves
	remaining = p.Reserves.R2
	if flipped {
		remaining = p.Reserves.R1
	}
	return
}

// feelessOutput() is min(floor(consumed * p / q), r2)
func feelessOutput(bare BareTradingFunction, consumed, r2 uint64) (uint64, lib.ErrorI) {
	ratio, err := fixpoint.Ratio(bare.P, bare.Q)
	if err != nil {
		return 0, err
	}
	out, err := fixpoint.FromUint64(consumed).Mul(ratio)
	if err != nil {
		return 0, err
	}
	if out.Cmp(fixpoint.FromUint64(r2)) >= 0 {
		return r2, nil
	}
	return out.RoundDown().Uint64()
}
