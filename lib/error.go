package lib

import (
	"fmt"
	"math"
)

type ErrorI interface {
	Code() ErrorCode     // Returns the error code
	Module() ErrorModule // Returns the error module
	error                // Implements the built-in error interface
}

var _ ErrorI = &Error{} // Ensures *Error implements ErrorI

type ErrorCode uint32 // Defines a type for error codes

type ErrorModule string // Defines a type for error modules

type Error struct {
	ECode   ErrorCode   `json:"code"`   // Error code
	EModule ErrorModule `json:"module"` // Error module
	Msg     string      `json:"msg"`    // Error message
}

func NewError(code ErrorCode, module ErrorModule, msg string) *Error {
	return &Error{ECode: code, EModule: module, Msg: msg}
}

// Code() returns the associated error code
func (p *Error) Code() ErrorCode { return p.ECode }

// Module() returns module field
func (p *Error) Module() ErrorModule { return p.EModule }

// String() calls Error()
func (p *Error) String() string { return p.Error() }

// Error() returns a formatted string including module, code and message
func (p *Error) Error() string {
	return fmt.Sprintf("\nModule:  %s\nCode:    %d\nMessage: %s", p.EModule, p.ECode, p.Msg)
}

// Is() reports whether two errors share a module and code, which lets errors.Is() match constructed errors
func (p *Error) Is(target error) bool {
	t, ok := target.(ErrorI)
	if !ok {
		return false
	}
	return t.Code() == p.ECode && t.Module() == p.EModule
}

const (
	NoCode ErrorCode = math.MaxUint32

	// Main Module
	MainModule ErrorModule = "main"

	// Main Module Error Codes
	CodeJSONMarshal     ErrorCode = 1
	CodeJSONUnmarshal   ErrorCode = 2
	CodeMarshal         ErrorCode = 3
	CodeUnmarshal       ErrorCode = 4
	CodeWriteFile       ErrorCode = 5
	CodeReadFile        ErrorCode = 6
	CodeInvalidArgument ErrorCode = 7
	CodeStringToBytes   ErrorCode = 8
	CodePanic           ErrorCode = 9
	CodeNilBlock        ErrorCode = 10
	CodeOverflow        ErrorCode = 11
	CodeUnderflow       ErrorCode = 12
	CodeDivideByZero    ErrorCode = 13
	CodeNotIntegral     ErrorCode = 14
	CodeEmptyEvents     ErrorCode = 15

	// Storage Module
	StorageModule ErrorModule = "store"

	// Storage Module Error Codes
	CodeOpenDB          ErrorCode = 1
	CodeCloseDB         ErrorCode = 2
	CodeStoreSet        ErrorCode = 3
	CodeStoreGet        ErrorCode = 4
	CodeStoreDelete     ErrorCode = 5
	CodeStoreIter       ErrorCode = 6
	CodeCommitDB        ErrorCode = 7
	CodeInvalidKey      ErrorCode = 8
	CodeReadOnlyStore   ErrorCode = 9
	CodeWrongStoreType  ErrorCode = 10
	CodeInvalidStoreCfg ErrorCode = 11

	// Dex Module
	DexModule ErrorModule = "dex"

	// Dex Module Error Codes
	CodeInvalidTradingFunction  ErrorCode = 1
	CodeInvalidTradingPair      ErrorCode = 2
	CodeInvalidReserves         ErrorCode = 3
	CodeInvalidPositionState    ErrorCode = 4
	CodePositionNotFound        ErrorCode = 5
	CodePositionAlreadyExists   ErrorCode = 6
	CodeInvalidSequence         ErrorCode = 7
	CodeCircuitBreakerExceeded  ErrorCode = 8
	CodeCircuitBreakerOverflow  ErrorCode = 9
	CodeExecutionOverflow       ErrorCode = 10
	CodeInvalidRoute            ErrorCode = 11
	CodeInsufficientLiquidity   ErrorCode = 12
	CodeAssetMismatch           ErrorCode = 13
	CodeOutputDataNotFound      ErrorCode = 14
	CodeOutputDataMismatch      ErrorCode = 15
	CodeAlreadySpent            ErrorCode = 16
	CodeInvalidProof            ErrorCode = 17
	CodeUnknownAction           ErrorCode = 18
	CodeDexDisabled             ErrorCode = 19
	CodeWrongBlockHeight        ErrorCode = 20
	CodeInvalidSwap             ErrorCode = 21
	CodeInvalidParams           ErrorCode = 22
	CodeFixedPoint              ErrorCode = 23
	CodeInvalidAssetId          ErrorCode = 24
	CodeEmptyNullifier          ErrorCode = 25
	CodeSimulationInputRequired ErrorCode = 26
	CodeActionRejected          ErrorCode = 27
	CodeInvalidSwapClaim        ErrorCode = 28
	CodeSwapNotFound            ErrorCode = 29
	CodeSwapAlreadyClaimed      ErrorCode = 30

	// RPC Module
	RPCModule ErrorModule = "rpc"

	// RPC Module Error Codes
	CodeServerTimeout ErrorCode = 1
	CodePostRequest   ErrorCode = 2
	CodeGetRequest    ErrorCode = 3
	CodeHttpStatus    ErrorCode = 4
	CodeReadBody      ErrorCode = 5
	CodeRateLimited   ErrorCode = 6
	CodeInvalidParam  ErrorCode = 7
	CodeApplyBlock    ErrorCode = 8
	CodeResourceUsage ErrorCode = 9
)

func ErrJSONMarshal(err error) ErrorI {
	return NewError(CodeJSONMarshal, MainModule, fmt.Sprintf("json.marshal() failed with err: %s", err.Error()))
}

func ErrJSONUnmarshal(err error) ErrorI {
	return NewError(CodeJSONUnmarshal, MainModule, fmt.Sprintf("json.unmarshal() failed with err: %s", err.Error()))
}

func ErrMarshal(err error) ErrorI {
	return NewError(CodeMarshal, MainModule, fmt.Sprintf("marshal() failed with err: %s", err.Error()))
}

func ErrUnmarshal(err error) ErrorI {
	return NewError(CodeUnmarshal, MainModule, fmt.Sprintf("unmarshal() failed with err: %s", err.Error()))
}

func ErrWriteFile(err error) ErrorI {
	return NewError(CodeWriteFile, MainModule, fmt.Sprintf("os.WriteFile() failed with err: %s", err.Error()))
}

func ErrReadFile(err error) ErrorI {
	return NewError(CodeReadFile, MainModule, fmt.Sprintf("os.ReadFile() failed with err: %s", err.Error()))
}

func ErrInvalidArgument() ErrorI {
	return NewError(CodeInvalidArgument, MainModule, "the argument is invalid")
}

func ErrStringToBytes(err error) ErrorI {
	return NewError(CodeStringToBytes, MainModule, fmt.Sprintf("stringToBytes() failed with err: %s", err.Error()))
}

func ErrPanic() ErrorI {
	return NewError(CodePanic, MainModule, "unexpected panic recovered")
}

func ErrNilBlock() ErrorI {
	return NewError(CodeNilBlock, MainModule, "block is nil")
}

func ErrOverflow() ErrorI {
	return NewError(CodeOverflow, MainModule, "arithmetic overflow")
}

func ErrUnderflow() ErrorI {
	return NewError(CodeUnderflow, MainModule, "arithmetic underflow")
}

func ErrDivideByZero() ErrorI {
	return NewError(CodeDivideByZero, MainModule, "division by zero")
}

func ErrNotIntegral() ErrorI {
	return NewError(CodeNotIntegral, MainModule, "fixed point value is not an integer")
}

func ErrEmptyEventsTracker() ErrorI {
	return NewError(CodeEmptyEvents, MainModule, "events tracker is nil")
}

func ErrServerTimeout() ErrorI {
	return NewError(CodeServerTimeout, RPCModule, "server timeout")
}

func ErrPostRequest(err error) ErrorI {
	return NewError(CodePostRequest, RPCModule, fmt.Sprintf("http.Post() failed with err: %s", err.Error()))
}

func ErrGetRequest(err error) ErrorI {
	return NewError(CodeGetRequest, RPCModule, fmt.Sprintf("http.Get() failed with err: %s", err.Error()))
}

func ErrHttpStatus(status string, statusCode int, body []byte) ErrorI {
	return NewError(CodeHttpStatus, RPCModule, fmt.Sprintf("%s: %d %s", status, statusCode, body))
}

func ErrReadBody(err error) ErrorI {
	return NewError(CodeReadBody, RPCModule, fmt.Sprintf("io.ReadAll(http.ResponseBody) failed with err: %s", err.Error()))
}

func ErrRateLimited() ErrorI {
	return NewError(CodeRateLimited, RPCModule, "too many requests")
}
