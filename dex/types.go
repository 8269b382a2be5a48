package dex

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strconv"

	"github.com/canopy-network/batchdex/lib"
	"github.com/canopy-network/batchdex/lib/crypto"
)

/* This file contains the value types shared by every component of the settlement engine */

// AssetId is the 32 byte identifier of an asset
type AssetId [32]byte

// NewAssetId() derives the asset id of a denomination string
func NewAssetId(denom string) (id AssetId) {
	copy(id[:], crypto.Hash([]byte(denom)))
	return
}

// AssetIdFromHex() decodes a hex encoded asset id
func AssetIdFromHex(s string) (id AssetId, err lib.ErrorI) {
	bz, err := lib.NewHexBytesFromString(s)
	if err != nil {
		return
	}
	if len(bz) != len(id) {
		return id, ErrInvalidAssetId(s)
	}
	copy(id[:], bz)
	return
}

func (a AssetId) Bytes() []byte                { return bytes.Clone(a[:]) }
func (a AssetId) String() string               { return hex.EncodeToString(a[:]) }
func (a AssetId) Compare(b AssetId) int        { return bytes.Compare(a[:], b[:]) }
func (a AssetId) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }
func (a *AssetId) UnmarshalJSON(bz []byte) error {
	var s string
	if err := json.Unmarshal(bz, &s); err != nil {
		return err
	}
	id, err := AssetIdFromHex(s)
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// Value is an amount of a specific asset
type Value struct {
	Amount  uint64  `json:"amount"`
	AssetId AssetId `json:"assetId"`
}

func (v Value) String() string { return strconv.FormatUint(v.Amount, 10) + " " + v.AssetId.String()[:8] }

// TradingPair is an unordered pair of assets, always held in canonical (smaller id first) order
type TradingPair struct {
	Asset1 AssetId `json:"asset1"`
	Asset2 AssetId `json:"asset2"`
}

// NewTradingPair() canonicalizes two distinct assets into a pair
func NewTradingPair(a, b AssetId) (TradingPair, lib.ErrorI) {
	switch a.Compare(b) {
	case 0:
		return TradingPair{}, ErrInvalidTradingPair()
	case 1:
		a, b = b, a
	}
	return TradingPair{Asset1: a, Asset2: b}, nil
}

// Check() ensures the pair is canonical and made of distinct assets
func (p TradingPair) Check() lib.ErrorI {
	if p.Asset1.Compare(p.Asset2) >= 0 {
		return ErrInvalidTradingPair()
	}
	return nil
}

// Contains() is true if the asset is one side of the pair
func (p TradingPair) Contains(a AssetId) bool { return p.Asset1 == a || p.Asset2 == a }

// Bytes() is the 64 byte canonical encoding, ordered like the pair itself
func (p TradingPair) Bytes() []byte { return append(p.Asset1.Bytes(), p.Asset2[:]...) }

// Compare() orders pairs canonically
func (p TradingPair) Compare(o TradingPair) int { return bytes.Compare(p.Bytes(), o.Bytes()) }

// Directed12() is the pair oriented from asset 1 to asset 2
func (p TradingPair) Directed12() DirectedTradingPair {
	return DirectedTradingPair{Start: p.Asset1, End: p.Asset2}
}

// Directed21() is the pair oriented from asset 2 to asset 1
func (p TradingPair) Directed21() DirectedTradingPair {
	return DirectedTradingPair{Start: p.Asset2, End: p.Asset1}
}

func (p TradingPair) String() string { return p.Asset1.String()[:8] + "/" + p.Asset2.String()[:8] }

// DirectedTradingPair is the (start, end) view of a pair used while routing
type DirectedTradingPair struct {
	Start AssetId `json:"start"`
	End   AssetId `json:"end"`
}

// Flip() reverses the direction
func (d DirectedTradingPair) Flip() DirectedTradingPair {
	return DirectedTradingPair{Start: d.End, End: d.Start}
}

// Canonical() drops the direction
func (d DirectedTradingPair) Canonical() (TradingPair, lib.ErrorI) { return NewTradingPair(d.Start, d.End) }

// Bytes() is the 64 byte (start, end) encoding
func (d DirectedTradingPair) Bytes() []byte { return append(d.Start.Bytes(), d.End[:]...) }

func (d DirectedTradingPair) String() string {
	return d.Start.String()[:8] + "->" + d.End.String()[:8]
}

// sortAssets() orders asset ids ascending in place
func sortAssets(assets []AssetId) {
	slices.SortFunc(assets, func(a, b AssetId) int { return a.Compare(b) })
}
