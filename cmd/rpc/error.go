package rpc

import (
	"fmt"

	"github.com/canopy-network/batchdex/lib"
)

func ErrInvalidParam(name string, err error) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidParam, lib.RPCModule, fmt.Sprintf("invalid param %s: %s", name, err.Error()))
}

func ErrMissingParam(name string) lib.ErrorI {
	return lib.NewError(lib.CodeInvalidParam, lib.RPCModule, fmt.Sprintf("missing param %s", name))
}

func ErrApplyBlock(err error) lib.ErrorI {
	return lib.NewError(lib.CodeApplyBlock, lib.RPCModule, fmt.Sprintf("apply block failed with err: %s", err.Error()))
}

func ErrResourceUsage(err error) lib.ErrorI {
	return lib.NewError(lib.CodeResourceUsage, lib.RPCModule, fmt.Sprintf("resource usage failed with err: %s", err.Error()))
}
