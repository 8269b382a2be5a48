package rpc

import (
	"net/http"

	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/julienschmidt/httprouter"
	"github.com/nsf/jsondiff"
)

// Version writes the software's version information
func (s *Server) Version(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, SoftwareVersion, http.StatusOK)
}

// Height responds with the height of the last applied block
func (s *Server) Height(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.withState(func(sm *dex.StateMachine) lib.ErrorI {
		write(w, &HeightResponse{Height: sm.Height()}, http.StatusOK)
		return nil
	})
}

// Params responds with the current dex parameters
func (s *Server) Params(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		return sm.GetParams()
	})
}

// OutputData responds with the batch swap output data of a pair at a height, or of every pair settled at the height
func (s *Server) OutputData(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(outputDataRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		height := latest(sm, req.Height)
		if req.Asset1 == (dex.AssetId{}) && req.Asset2 == (dex.AssetId{}) {
			return sm.OutputDataByHeight(height)
		}
		pair, ok := req.pair()
		if !ok {
			return nil, ErrMissingParam("pair")
		}
		return sm.OutputData(height, pair)
	})
}

// OutputDataDiff responds with the difference between the batches settled at two heights
// a GET request renders the diff as html
func (s *Server) OutputDataDiff(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req, opts := new(heightsRequest), jsondiff.Options{}
	switch r.Method {
	case http.MethodGet:
		opts = jsondiff.DefaultHTMLOptions()
		opts.ChangedSeparator = " <- "
		if err := r.ParseForm(); err != nil {
			write(w, ErrInvalidParam("form", err), http.StatusBadRequest)
			return
		}
		req.Height = parseUint64FromString(r.Form.Get("height"))
		req.StartHeight = parseUint64FromString(r.Form.Get("startHeight"))
	default:
		opts = jsondiff.DefaultConsoleOptions()
		if ok := unmarshal(w, r, req); !ok {
			return
		}
	}
	var j1, j2 []byte
	if err := s.withState(func(sm *dex.StateMachine) (err lib.ErrorI) {
		req.Height = latest(sm, req.Height)
		if req.StartHeight == 0 && req.Height > 0 {
			req.StartHeight = req.Height - 1
		}
		if j1, err = outputDataJSON(sm, req.StartHeight); err != nil {
			return
		}
		j2, err = outputDataJSON(sm, req.Height)
		return
	}); err != nil {
		write(w, err, http.StatusBadRequest)
		return
	}
	_, differ := jsondiff.Compare(j1, j2, &opts)
	if r.Method == http.MethodGet {
		w.Header().Set(ContentType, TextHTML)
		differ = "<pre>" + differ + "</pre>"
	}
	if _, err := w.Write([]byte(differ)); err != nil {
		s.logger.Error(err.Error())
	}
}

// Position responds with a position by id
func (s *Server) Position(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(positionRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		return sm.PositionById(req.Id)
	})
}

// Positions responds with the positions of a pair
func (s *Server) Positions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(positionsRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	pair, ok := req.pair()
	if !ok {
		write(w, ErrMissingParam("pair"), http.StatusBadRequest)
		return
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		return sm.PositionsByPair(pair, req.IncludeClosed)
	})
}

// SwapExecutions responds with the batch swap executions in a height range, optionally of a single direction
func (s *Server) SwapExecutions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(executionsRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	var filter *dex.DirectedTradingPair
	if d, ok := req.directed(); ok {
		filter = &d
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		return sm.SwapExecutions(req.StartHeight, latest(sm, req.Height), filter)
	})
}

// ArbExecutions responds with the arbitrage executions in a height range
func (s *Server) ArbExecutions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(heightsRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		return sm.ArbExecutions(req.StartHeight, latest(sm, req.Height))
	})
}

// Events responds with the events emitted by the block at a height, optionally of a single type
func (s *Server) Events(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(eventsRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		events, err := sm.Events(latest(sm, req.Height))
		if err != nil || req.EventType == "" {
			return events, err
		}
		return events.OfType(req.EventType), nil
	})
}

// Candlesticks responds with the candlesticks of a directed pair
func (s *Server) Candlesticks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.candlesticks(w, r, func(sm *dex.StateMachine, d dex.DirectedTradingPair, req *candlesticksRequest) (any, lib.ErrorI) {
		return sm.Candlesticks(d, req.StartHeight, req.Limit)
	})
}

// CandlestickSummary responds with the statistics of the close prices of a directed pair
func (s *Server) CandlestickSummary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.candlesticks(w, r, func(sm *dex.StateMachine, d dex.DirectedTradingPair, req *candlesticksRequest) (any, lib.ErrorI) {
		return sm.CandlestickSummary(d, req.StartHeight, req.Limit)
	})
}

// SimulateTrade responds with what a trade would yield against the current positions, without changing them
func (s *Server) SimulateTrade(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(simulateTradeRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	mode := dex.SimulateDefault
	if req.SingleHop {
		mode = dex.SimulateSingleHop
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		return sm.SimulateTrade(req.Input, req.Output, mode)
	})
}

// VCBBalance responds with the value the dex holds for an asset
func (s *Server) VCBBalance(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	req := new(assetRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		balance, err := sm.VCBBalance(req.AssetId)
		if err != nil {
			return nil, err
		}
		protocol, err := sm.GetProtocolBalance(req.AssetId)
		if err != nil {
			return nil, err
		}
		return &VCBBalanceResponse{AssetId: req.AssetId, Balance: balance, ProtocolBalance: protocol}, nil
	})
}

// query is a helper function to abstract the common workflow of a callback requiring the state machine
func (s *Server) query(w http.ResponseWriter, callback func(sm *dex.StateMachine) (any, lib.ErrorI)) {
	s.withState(func(sm *dex.StateMachine) lib.ErrorI {
		p, err := callback(sm)
		if err != nil {
			write(w, err, http.StatusBadRequest)
			return err
		}
		write(w, p, http.StatusOK)
		return nil
	})
}

// candlesticks is a helper function for the routes requiring a directed pair and a candlestick range
func (s *Server) candlesticks(w http.ResponseWriter, r *http.Request, callback func(*dex.StateMachine, dex.DirectedTradingPair, *candlesticksRequest) (any, lib.ErrorI)) {
	req := new(candlesticksRequest)
	if ok := unmarshal(w, r, req); !ok {
		return
	}
	d, ok := req.directed()
	if !ok {
		write(w, ErrMissingParam("start and end"), http.StatusBadRequest)
		return
	}
	s.query(w, func(sm *dex.StateMachine) (any, lib.ErrorI) {
		return callback(sm, d, req)
	})
}

// outputDataJSON() is the json of every batch settled at the height
func outputDataJSON(sm *dex.StateMachine, height uint64) ([]byte, lib.ErrorI) {
	list, err := sm.OutputDataByHeight(height)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*dex.BatchSwapOutputData{}
	}
	return lib.MarshalJSON(list)
}

// latest() defaults a zero height to the last applied block
func latest(sm *dex.StateMachine, height uint64) uint64 {
	if height == 0 {
		return sm.Height()
	}
	return height
}
