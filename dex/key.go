package dex

import (
	"github.com/canopy-network/batchdex/lib"
)

/* Key.go contains prefix keys logic for the underlying store */

var (
	positionPrefix        = []byte{1}  // store key prefix for positions by id
	priceIndexPrefix      = []byte{2}  // store key prefix for opened positions ordered by effective price per directed pair
	liquidityIndexPrefix  = []byte{3}  // store key prefix for directed pairs ordered by routable liquidity
	liquidityLookupPrefix = []byte{4}  // store key prefix for the current routable liquidity of a directed pair
	vcbPrefix             = []byte{5}  // store key prefix for value circuit breaker balances
	outputDataPrefix      = []byte{6}  // store key prefix for batch swap output data
	swapExecutionPrefix   = []byte{7}  // store key prefix for batch swap executions
	arbExecutionPrefix    = []byte{8}  // store key prefix for arbitrage executions
	candlestickPrefix     = []byte{9}  // store key prefix for finalized candlesticks
	candleBlockPrefix     = []byte{10} // store key prefix for the price records of the current block
	swapFlowPrefix        = []byte{11} // store key prefix for the swap flows of the current block
	nullifierPrefix       = []byte{12} // store key prefix for spent nullifiers
	closeQueuePrefix      = []byte{13} // store key prefix for positions queued to close at end of block
	paramsPrefix          = []byte{14} // store key prefix for the dex parameters
	blockInfoPrefix       = []byte{15} // store key prefix for the height and epoch of the current block
	protocolBalancePrefix = []byte{16} // store key prefix for value captured by the protocol
	noteCommitmentPrefix  = []byte{17} // store key prefix for output note commitments
	swapCommitmentPrefix  = []byte{18} // store key prefix for the swaps awaiting a claim
	swapIndexPrefix       = []byte{19} // store key prefix for the number of swaps in the current block
	claimedOutputsPrefix  = []byte{20} // store key prefix for the outputs already claimed from a batch
	eventsPrefix          = []byte{21} // store key prefix for the events emitted by each block
	newPositionPairPrefix = []byte{22} // store key prefix for the pairs that gained a position this block
)

/*
- Prefixes group similar structures so a prefix iteration yields exactly one kind of record

- Length prefixed append separates the segments of a key

- BigEndianEncoding is used for heights and amounts so the lexicographic order of the store is numeric order

- The price index embeds the 32 byte effective price, so ascending iteration yields the best price first
  and ties resolve by ascending position id
*/

func PositionPrefix() []byte              { return lib.JoinLenPrefix(positionPrefix) }
func KeyForPosition(id PositionId) []byte { return lib.JoinLenPrefix(positionPrefix, id[:]) }

func PriceIndexPrefix(d DirectedTradingPair) []byte {
	return lib.JoinLenPrefix(priceIndexPrefix, d.Bytes())
}
func KeyForPriceIndex(d DirectedTradingPair, price []byte, id PositionId) []byte {
	return lib.JoinLenPrefix(priceIndexPrefix, d.Bytes(), price, id[:])
}

// the liquidity index stores the bitwise complement of the amount so ascending iteration is largest first
func LiquidityIndexPrefix(start AssetId) []byte {
	return lib.JoinLenPrefix(liquidityIndexPrefix, start[:])
}
func KeyForLiquidityIndex(d DirectedTradingPair, amount uint64) []byte {
	return lib.JoinLenPrefix(liquidityIndexPrefix, d.Start[:], lib.FormatUint64(^amount), d.End[:])
}
func KeyForLiquidityLookup(d DirectedTradingPair) []byte {
	return lib.JoinLenPrefix(liquidityLookupPrefix, d.Bytes())
}

func KeyForVCB(a AssetId) []byte { return lib.JoinLenPrefix(vcbPrefix, a[:]) }

func OutputDataPrefix(height uint64) []byte {
	return lib.JoinLenPrefix(outputDataPrefix, lib.FormatUint64(height))
}
func KeyForOutputData(height uint64, p TradingPair) []byte {
	return lib.JoinLenPrefix(outputDataPrefix, lib.FormatUint64(height), p.Bytes())
}

func SwapExecutionPrefix() []byte { return lib.JoinLenPrefix(swapExecutionPrefix) }
func KeyForSwapExecution(height uint64, d DirectedTradingPair) []byte {
	return lib.JoinLenPrefix(swapExecutionPrefix, lib.FormatUint64(height), d.Bytes())
}

func ArbExecutionPrefix() []byte { return lib.JoinLenPrefix(arbExecutionPrefix) }
func KeyForArbExecution(height uint64) []byte {
	return lib.JoinLenPrefix(arbExecutionPrefix, lib.FormatUint64(height))
}

func CandlestickPrefix(d DirectedTradingPair) []byte {
	return lib.JoinLenPrefix(candlestickPrefix, d.Bytes())
}
func KeyForCandlestick(d DirectedTradingPair, height uint64) []byte {
	return lib.JoinLenPrefix(candlestickPrefix, d.Bytes(), lib.FormatUint64(height))
}
func CandleBlockPrefix() []byte { return lib.JoinLenPrefix(candleBlockPrefix) }
func KeyForCandleBlock(d DirectedTradingPair) []byte {
	return lib.JoinLenPrefix(candleBlockPrefix, d.Bytes())
}

func SwapFlowPrefix() []byte                 { return lib.JoinLenPrefix(swapFlowPrefix) }
func KeyForSwapFlow(p TradingPair) []byte    { return lib.JoinLenPrefix(swapFlowPrefix, p.Bytes()) }
func KeyForNullifier(n []byte) []byte        { return lib.JoinLenPrefix(nullifierPrefix, n) }
func KeyForNoteCommitment(c []byte) []byte   { return lib.JoinLenPrefix(noteCommitmentPrefix, c) }
func KeyForSwapCommitment(c []byte) []byte   { return lib.JoinLenPrefix(swapCommitmentPrefix, c) }
func KeyForSwapIndex() []byte                { return lib.JoinLenPrefix(swapIndexPrefix) }
func KeyForClaimedOutputs(height uint64, p TradingPair) []byte {
	return lib.JoinLenPrefix(claimedOutputsPrefix, lib.FormatUint64(height), p.Bytes())
}
func NewPositionPairPrefix() []byte { return lib.JoinLenPrefix(newPositionPairPrefix) }
func KeyForNewPositionPair(p TradingPair) []byte {
	return lib.JoinLenPrefix(newPositionPairPrefix, p.Bytes())
}
func KeyForEvents(height uint64) []byte {
	return lib.JoinLenPrefix(eventsPrefix, lib.FormatUint64(height))
}
func CloseQueuePrefix() []byte               { return lib.JoinLenPrefix(closeQueuePrefix) }
func KeyForCloseQueue(id PositionId) []byte  { return lib.JoinLenPrefix(closeQueuePrefix, id[:]) }
func KeyForParams() []byte                   { return lib.JoinLenPrefix(paramsPrefix) }
func KeyForBlockInfo() []byte                { return lib.JoinLenPrefix(blockInfoPrefix) }
func ProtocolBalancePrefix() []byte          { return lib.JoinLenPrefix(protocolBalancePrefix) }
func KeyForProtocolBalance(a AssetId) []byte { return lib.JoinLenPrefix(protocolBalancePrefix, a[:]) }

// idFromPriceKey() extracts the position id, the last segment of a price index key
func idFromPriceKey(k []byte) (id PositionId, err lib.ErrorI) {
	segments := lib.DecodeLengthPrefixed(k)
	if len(segments) != 4 || len(segments[3]) != len(id) {
		return id, ErrInvalidKey(k)
	}
	copy(id[:], segments[3])
	return
}

// pairFromLiquidityKey() extracts the directed pair of a liquidity index key
func pairFromLiquidityKey(k []byte) (d DirectedTradingPair, err lib.ErrorI) {
	segments := lib.DecodeLengthPrefixed(k)
	if len(segments) != 4 || len(segments[1]) != len(d.Start) || len(segments[3]) != len(d.End) {
		return d, ErrInvalidKey(k)
	}
	copy(d.Start[:], segments[1])
	copy(d.End[:], segments[3])
	return
}

// idFromCloseQueueKey() extracts the position id of a close queue key
func idFromCloseQueueKey(k []byte) (id PositionId, err lib.ErrorI) {
	segments := lib.DecodeLengthPrefixed(k)
	if len(segments) != 2 || len(segments[1]) != len(id) {
		return id, ErrInvalidKey(k)
	}
	copy(id[:], segments[1])
	return
}

// pairFromKey() extracts the trading pair of a swap flow or new position pair key
func pairFromKey(k []byte) (p TradingPair, err lib.ErrorI) {
	segments := lib.DecodeLengthPrefixed(k)
	if len(segments) != 2 || len(segments[1]) != len(p.Asset1)+len(p.Asset2) {
		return p, ErrInvalidKey(k)
	}
	copy(p.Asset1[:], segments[1][:len(p.Asset1)])
	copy(p.Asset2[:], segments[1][len(p.Asset1):])
	return
}

// pairFromCandleBlockKey() extracts the directed pair of a block price record key
func pairFromCandleBlockKey(k []byte) (d DirectedTradingPair, err lib.ErrorI) {
	segments := lib.DecodeLengthPrefixed(k)
	if len(segments) != 2 || len(segments[1]) != len(d.Start)+len(d.End) {
		return d, ErrInvalidKey(k)
	}
	copy(d.Start[:], segments[1][:len(d.Start)])
	copy(d.End[:], segments[1][len(d.Start):])
	return
}

// heightFromKey() extracts the big endian height at the segment index of a key
func heightFromKey(k []byte, index int) (uint64, lib.ErrorI) {
	segments := lib.DecodeLengthPrefixed(k)
	if len(segments) <= index || len(segments[index]) != 8 {
		return 0, ErrInvalidKey(k)
	}
	return lib.ParseUint64(segments[index]), nil
}
