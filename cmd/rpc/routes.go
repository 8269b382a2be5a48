package rpc

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// BatchDEX RPC Paths
const (
	VersionRoutePath            = "/v1/"
	HeightRoutePath             = "/v1/query/height"
	ParamsRoutePath             = "/v1/query/params"
	OutputDataRoutePath         = "/v1/query/output-data"
	OutputDataDiffRoutePath     = "/v1/query/output-data-diff"
	PositionRoutePath           = "/v1/query/position"
	PositionsRoutePath          = "/v1/query/positions"
	SwapExecutionsRoutePath     = "/v1/query/swap-executions"
	ArbExecutionsRoutePath      = "/v1/query/arb-executions"
	CandlesticksRoutePath       = "/v1/query/candlesticks"
	CandlestickSummaryRoutePath = "/v1/query/candlestick-summary"
	SimulateTradeRoutePath      = "/v1/query/simulate-trade"
	VCBBalanceRoutePath         = "/v1/query/vcb-balance"
	EventsRoutePath             = "/v1/query/events"
	// admin
	ApplyBlockRoutePath    = "/v1/admin/apply-block"
	ResourceUsageRoutePath = "/v1/admin/resource-usage"
	ConfigRoutePath        = "/v1/admin/config"
)

const (
	VersionRouteName            = "version"
	HeightRouteName             = "height"
	ParamsRouteName             = "params"
	OutputDataRouteName         = "output-data"
	OutputDataDiffRouteName     = "output-data-diff"
	OutputDataDiffGetRouteName  = "output-data-diff-get"
	PositionRouteName           = "position"
	PositionsRouteName          = "positions"
	SwapExecutionsRouteName     = "swap-executions"
	ArbExecutionsRouteName      = "arb-executions"
	CandlesticksRouteName       = "candlesticks"
	CandlestickSummaryRouteName = "candlestick-summary"
	SimulateTradeRouteName      = "simulate-trade"
	VCBBalanceRouteName         = "vcb-balance"
	EventsRouteName             = "events"
	// admin
	ApplyBlockRouteName    = "apply-block"
	ResourceUsageRouteName = "resource-usage"
	ConfigRouteName        = "config"
)

// routes contains the method and path for a batchdex command
type routes map[string]struct {
	Method string
	Path   string
}

// routePaths is a mapping from route names to their corresponding HTTP methods and paths.
var routePaths = routes{
	VersionRouteName:            {Method: http.MethodGet, Path: VersionRoutePath},
	HeightRouteName:             {Method: http.MethodPost, Path: HeightRoutePath},
	ParamsRouteName:             {Method: http.MethodPost, Path: ParamsRoutePath},
	OutputDataRouteName:         {Method: http.MethodPost, Path: OutputDataRoutePath},
	OutputDataDiffRouteName:     {Method: http.MethodPost, Path: OutputDataDiffRoutePath},
	OutputDataDiffGetRouteName:  {Method: http.MethodGet, Path: OutputDataDiffRoutePath},
	PositionRouteName:           {Method: http.MethodPost, Path: PositionRoutePath},
	PositionsRouteName:          {Method: http.MethodPost, Path: PositionsRoutePath},
	SwapExecutionsRouteName:     {Method: http.MethodPost, Path: SwapExecutionsRoutePath},
	ArbExecutionsRouteName:      {Method: http.MethodPost, Path: ArbExecutionsRoutePath},
	CandlesticksRouteName:       {Method: http.MethodPost, Path: CandlesticksRoutePath},
	CandlestickSummaryRouteName: {Method: http.MethodPost, Path: CandlestickSummaryRoutePath},
	SimulateTradeRouteName:      {Method: http.MethodPost, Path: SimulateTradeRoutePath},
	VCBBalanceRouteName:         {Method: http.MethodPost, Path: VCBBalanceRoutePath},
	EventsRouteName:             {Method: http.MethodPost, Path: EventsRoutePath},
	// admin
	ApplyBlockRouteName:    {Method: http.MethodPost, Path: ApplyBlockRoutePath},
	ResourceUsageRouteName: {Method: http.MethodGet, Path: ResourceUsageRoutePath},
	ConfigRouteName:        {Method: http.MethodGet, Path: ConfigRoutePath},
}

// httpRouteHandlers is a custom type that maps strings to httprouter handle functions
type httpRouteHandlers map[string]httprouter.Handle

// createRouter initializes and returns a new HTTP router with the query route handlers.
func createRouter(s *Server) *httprouter.Router {
	var r = httpRouteHandlers{
		VersionRouteName:            s.Version,
		HeightRouteName:             s.Height,
		ParamsRouteName:             s.Params,
		OutputDataRouteName:         s.OutputData,
		OutputDataDiffRouteName:     s.OutputDataDiff,
		OutputDataDiffGetRouteName:  s.OutputDataDiff,
		PositionRouteName:           s.Position,
		PositionsRouteName:          s.Positions,
		SwapExecutionsRouteName:     s.SwapExecutions,
		ArbExecutionsRouteName:      s.ArbExecutions,
		CandlesticksRouteName:       s.Candlesticks,
		CandlestickSummaryRouteName: s.CandlestickSummary,
		SimulateTradeRouteName:      s.SimulateTrade,
		VCBBalanceRouteName:         s.VCBBalance,
		EventsRouteName:             s.Events,
	}
	return newRouter(s, r)
}

// createAdminRouter initializes and returns a new HTTP router with the admin route handlers.
func createAdminRouter(s *Server) *httprouter.Router {
	var r = httpRouteHandlers{
		ApplyBlockRouteName:    s.ApplyBlock,
		ResourceUsageRouteName: s.ResourceUsage,
		ConfigRouteName:        s.Config,
	}
	return newRouter(s, r)
}

// newRouter registers each named handler at its path
func newRouter(s *Server, r httpRouteHandlers) *httprouter.Router {
	router := httprouter.New()
	for name, handler := range r {
		// Retrieve the path configuration for the current route name.
		path := routePaths[name]
		// Add the handler for the specific path and HTTP method to the router.
		router.Handle(path.Method, path.Path, logHandler{path: path.Path, h: handler, log: s.logger}.Handle)
	}
	return router
}
