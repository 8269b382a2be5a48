package dex

import (
	"fmt"

	"github.com/canopy-network/batchdex/lib"
)

func ErrInvalidTradingFunction(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidTradingFunction, lib.DexModule, fmt.Sprintf("invalid trading function: %s", reason))
}

func ErrInvalidTradingPair() lib.ErrorI {
	return lib.NewError(lib.CodeInvalidTradingPair, lib.DexModule, "trading pair assets must be distinct")
}

func ErrInvalidReserves(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidReserves, lib.DexModule, fmt.Sprintf("invalid reserves: %s", reason))
}

func ErrInvalidPositionState(id PositionId, state PositionState) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidPositionState, lib.DexModule, fmt.Sprintf("position %s is in invalid state %s", id, state))
}

func ErrPositionNotFound(id PositionId) lib.ErrorI {
	return lib.NewError(lib.CodePositionNotFound, lib.DexModule, fmt.Sprintf("position %s not found", id))
}

func ErrPositionAlreadyExists(id PositionId) lib.ErrorI {
	return lib.NewError(lib.CodePositionAlreadyExists, lib.DexModule, fmt.Sprintf("position %s already exists", id))
}

func ErrInvalidSequence(expected, got uint64) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidSequence, lib.DexModule, fmt.Sprintf("expected sequence %d, got %d", expected, got))
}

func ErrCircuitBreakerExceeded(asset AssetId, balance, debit uint64) lib.ErrorI {
	return lib.NewError(lib.CodeCircuitBreakerExceeded, lib.DexModule,
		fmt.Sprintf("value circuit breaker tripped for asset %s: balance %d, debit %d", asset, balance, debit))
}

func ErrCircuitBreakerOverflow(asset AssetId) lib.ErrorI {
	return lib.NewError(lib.CodeCircuitBreakerOverflow, lib.DexModule, fmt.Sprintf("value circuit breaker overflow for asset %s", asset))
}

func ErrExecutionOverflow(id PositionId) lib.ErrorI {
	return &ExecutionOverflowError{
		err:      lib.NewError(lib.CodeExecutionOverflow, lib.DexModule, fmt.Sprintf("overflow when executing against position %s", id)),
		Position: id,
	}
}

func ErrInvalidRoute(length int) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidRoute, lib.DexModule, fmt.Sprintf("invalid route length %d (must be at least 2)", length))
}

func ErrInsufficientLiquidity(pair DirectedTradingPair) lib.ErrorI {
	return lib.NewError(lib.CodeInsufficientLiquidity, lib.DexModule, fmt.Sprintf("insufficient liquidity in pair %s", pair))
}

func ErrAssetMismatch(asset AssetId, pair TradingPair) lib.ErrorI {
	return lib.NewError(lib.CodeAssetMismatch, lib.DexModule, fmt.Sprintf("asset %s does not belong on pair %s", asset, pair))
}

func ErrOutputDataNotFound(height uint64, pair TradingPair) lib.ErrorI {
	return lib.NewError(lib.CodeOutputDataNotFound, lib.DexModule, fmt.Sprintf("no output data for pair %s at height %d", pair, height))
}

func ErrOutputDataMismatch() lib.ErrorI {
	return lib.NewError(lib.CodeOutputDataMismatch, lib.DexModule, "claimed output data does not match the settled batch")
}

func ErrAlreadySpent(nullifier lib.HexBytes) lib.ErrorI {
	return lib.NewError(lib.CodeAlreadySpent, lib.DexModule, fmt.Sprintf("nullifier %s was already spent", nullifier))
}

func ErrInvalidProof(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidProof, lib.DexModule, fmt.Sprintf("proof verification failed: %s", reason))
}

func ErrUnknownAction(kind string) lib.ErrorI {
	return lib.NewError(lib.CodeUnknownAction, lib.DexModule, fmt.Sprintf("unknown action %q", kind))
}

func ErrDexDisabled() lib.ErrorI {
	return lib.NewError(lib.CodeDexDisabled, lib.DexModule, "the dex is not accepting actions")
}

func ErrWrongBlockHeight(expected, got uint64) lib.ErrorI {
	return lib.NewError(lib.CodeWrongBlockHeight, lib.DexModule, fmt.Sprintf("expected block height %d, got %d", expected, got))
}

func ErrInvalidSwap(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidSwap, lib.DexModule, fmt.Sprintf("invalid swap: %s", reason))
}

func ErrInvalidParams(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidParams, lib.DexModule, fmt.Sprintf("invalid dex params: %s", reason))
}

func ErrFixedPoint(err error) lib.ErrorI {
	return lib.NewError(lib.CodeFixedPoint, lib.DexModule, fmt.Sprintf("fixed point arithmetic failed with err: %s", err.Error()))
}

func ErrInvalidAssetId(s string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidAssetId, lib.DexModule, fmt.Sprintf("invalid asset id %q", s))
}

func ErrEmptyNullifier() lib.ErrorI {
	return lib.NewError(lib.CodeEmptyNullifier, lib.DexModule, "nullifier is empty")
}

func ErrInvalidSwapClaim(reason string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidSwapClaim, lib.DexModule, fmt.Sprintf("invalid swap claim: %s", reason))
}

func ErrSwapNotFound(commitment lib.HexBytes) lib.ErrorI {
	return lib.NewError(lib.CodeSwapNotFound, lib.DexModule, fmt.Sprintf("no swap with commitment %s", commitment))
}

func ErrSwapAlreadyClaimed(commitment lib.HexBytes) lib.ErrorI {
	return lib.NewError(lib.CodeSwapAlreadyClaimed, lib.DexModule, fmt.Sprintf("swap %s was already claimed", commitment))
}

func ErrSimulationInputRequired() lib.ErrorI {
	return lib.NewError(lib.CodeSimulationInputRequired, lib.DexModule, "simulation requires a non-zero input")
}

// ExecutionOverflowError carries the position that overflowed so the router can close it
type ExecutionOverflowError struct {
	err      *lib.Error
	Position PositionId
}

func (e *ExecutionOverflowError) Code() lib.ErrorCode     { return e.err.Code() }
func (e *ExecutionOverflowError) Module() lib.ErrorModule { return e.err.Module() }
func (e *ExecutionOverflowError) Error() string           { return e.err.Error() }
func (e *ExecutionOverflowError) Is(target error) bool    { return e.err.Is(target) }

func ErrInvalidKey(k []byte) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidKey, lib.StorageModule, fmt.Sprintf("invalid key %x", k))
}

func ErrWrongStoreType() lib.ErrorI {
	return lib.NewError(lib.CodeWrongStoreType, lib.StorageModule, "blocks may only be applied to the root store")
}

func ErrActionRejected(index int, reason string) lib.ErrorI {
	return lib.NewError(lib.CodeActionRejected, lib.DexModule, fmt.Sprintf("action %d rejected: %s", index, reason))
}
