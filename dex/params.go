package dex

import (
	"slices"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/fixpoint"
)

// maxDynamicCandidates is the number of liquidity ranked intermediaries considered per search round
const maxDynamicCandidates = 10

// Params are the consensus parameters of the settlement engine
type Params struct {
	Enabled             bool      `json:"enabled"`             // is the dex accepting actions
	MaxHops             uint32    `json:"maxHops"`             // the maximum number of hops in a route
	MaxExecutionBudget  uint32    `json:"maxExecutionBudget"`  // the maximum number of routing iterations per batch
	FixedCandidates     []AssetId `json:"fixedCandidates"`     // assets always considered as routing intermediaries
	StakingToken        AssetId   `json:"stakingToken"`        // the numeraire arbitrage starts and ends with
	ArbMinProfit        uint64    `json:"arbMinProfit"`        // the minimum surplus for an arbitrage to be committed
	MaxPositionsPerPair uint32    `json:"maxPositionsPerPair"` // opened positions a pair keeps before the lowest inventory ones are evicted, 0 is unlimited
}

// DefaultParams() returns the developer set params
func DefaultParams() *Params {
	return &Params{
		Enabled:             true,
		MaxHops:             4,
		MaxExecutionBudget:  64,
		FixedCandidates:     []AssetId{},
		StakingToken:        NewAssetId("ubatch"),
		MaxPositionsPerPair: 1_000,
	}
}

// NewParamsFromConfig() builds the genesis params from the dex config
func NewParamsFromConfig(c lib.DexConfig) (*Params, lib.ErrorI) {
	p := DefaultParams()
	p.Enabled, p.MaxHops, p.MaxExecutionBudget, p.ArbMinProfit = c.Enabled, c.MaxHops, c.MaxExecutionBudget, c.ArbMinProfit
	p.MaxPositionsPerPair = c.MaxPositionsPerPair
	for _, s := range c.FixedCandidates {
		a, err := AssetIdFromHex(s)
		if err != nil {
			return nil, err
		}
		p.FixedCandidates = append(p.FixedCandidates, a)
	}
	if c.StakingToken != "" {
		a, err := AssetIdFromHex(c.StakingToken)
		if err != nil {
			return nil, err
		}
		p.StakingToken = a
	}
	return p, p.Check()
}

// Check() validates the params
func (p *Params) Check() lib.ErrorI {
	if p.MaxHops == 0 {
		return ErrInvalidParams("max hops must be at least 1")
	}
	if p.MaxExecutionBudget == 0 {
		return ErrInvalidParams("max execution budget must be at least 1")
	}
	return nil
}

// RoutingParams() are the routing options batch settlement uses
func (p *Params) RoutingParams() RoutingParams {
	return RoutingParams{MaxHops: p.MaxHops, FixedCandidates: slices.Clone(p.FixedCandidates)}
}

// SetParams() writes the params to state
func (s *StateMachine) SetParams(p *Params) lib.ErrorI {
	bz, err := lib.MarshalJSON(p)
	if err != nil {
		return err
	}
	return s.Set(KeyForParams(), bz)
}

// GetParams() reads the params from state
func (s *StateMachine) GetParams() (*Params, lib.ErrorI) {
	bz, err := s.Get(KeyForParams())
	if err != nil {
		return nil, err
	}
	if bz == nil {
		return DefaultParams(), nil
	}
	p := new(Params)
	if err = lib.UnmarshalJSON(bz, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RoutingParams bound a single path search and fill
type RoutingParams struct {
	MaxHops         uint32             `json:"maxHops"`
	FixedCandidates []AssetId          `json:"fixedCandidates"`
	PriceLimit      *fixpoint.U128x128 `json:"priceLimit,omitempty"` // stop routing once the worst price paid reaches this
}

// WithExtraCandidates() returns a copy that also routes through the assets, deduplicated
func (r RoutingParams) WithExtraCandidates(assets ...AssetId) RoutingParams {
	out := r
	out.FixedCandidates = slices.Clone(r.FixedCandidates)
	for _, a := range assets {
		if !slices.Contains(out.FixedCandidates, a) {
			out.FixedCandidates = append(out.FixedCandidates, a)
		}
	}
	return out
}
