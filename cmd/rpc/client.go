package rpc

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/cenkalti/backoff/v4"
)

// Client is a retrying http client of the query and admin rpc servers
type Client struct {
	rpcURL      string
	adminRPCURL string
	retries     uint64
	client      http.Client
}

func NewClient(rpcURL, adminRPCURL string, retries uint64) *Client {
	return &Client{
		rpcURL:      strings.TrimSuffix(rpcURL, "/"),
		adminRPCURL: strings.TrimSuffix(adminRPCURL, "/"),
		retries:     retries,
		client:      http.Client{},
	}
}

func (c *Client) Version() (version *string, err lib.ErrorI) {
	version = new(string)
	err = c.get(VersionRouteName, "", version)
	return
}

func (c *Client) Height() (p *HeightResponse, err lib.ErrorI) {
	p = new(HeightResponse)
	err = c.post(HeightRouteName, nil, p)
	return
}

func (c *Client) Params() (p *dex.Params, err lib.ErrorI) {
	p = new(dex.Params)
	err = c.post(ParamsRouteName, nil, p)
	return
}

// OutputData() returns the batch of the pair settled at the height, nil if there was none
func (c *Client) OutputData(height uint64, pair dex.TradingPair) (p *dex.BatchSwapOutputData, err lib.ErrorI) {
	p = new(dex.BatchSwapOutputData)
	err = c.request(OutputDataRouteName, outputDataRequest{
		heightRequest: heightRequest{Height: height},
		pairRequest:   pairRequest{Asset1: pair.Asset1, Asset2: pair.Asset2},
	}, &p)
	return
}

func (c *Client) OutputDataByHeight(height uint64) (p []*dex.BatchSwapOutputData, err lib.ErrorI) {
	err = c.request(OutputDataRouteName, outputDataRequest{heightRequest: heightRequest{Height: height}}, &p)
	return
}

// OutputDataDiff() returns the console rendering of the difference between the batches at two heights
func (c *Client) OutputDataDiff(startHeight, height uint64) (diff string, err lib.ErrorI) {
	bz, err := lib.MarshalJSON(heightsRequest{heightRequest: heightRequest{Height: height}, StartHeight: startHeight})
	if err != nil {
		return
	}
	raw, err := c.do(func() (*http.Response, error) {
		return c.client.Post(c.url(OutputDataDiffRouteName, "", false), ApplicationJSON, bytes.NewReader(bz))
	})
	return string(raw), err
}

func (c *Client) Position(id dex.PositionId) (p *dex.Position, err lib.ErrorI) {
	p = new(dex.Position)
	err = c.request(PositionRouteName, positionRequest{Id: id}, p)
	return
}

func (c *Client) Positions(pair dex.TradingPair, includeClosed bool) (p []*dex.Position, err lib.ErrorI) {
	err = c.request(PositionsRouteName, positionsRequest{
		pairRequest:   pairRequest{Asset1: pair.Asset1, Asset2: pair.Asset2},
		IncludeClosed: includeClosed,
	}, &p)
	return
}

// SwapExecutions() lists the batch executions between the heights, a nil pair lists every direction
func (c *Client) SwapExecutions(startHeight, endHeight uint64, pair *dex.DirectedTradingPair) (p []*dex.SwapExecutionRecord, err lib.ErrorI) {
	req := executionsRequest{heightsRequest: heightsRequest{heightRequest: heightRequest{Height: endHeight}, StartHeight: startHeight}}
	if pair != nil {
		req.directedPairRequest = directedPairRequest{Start: pair.Start, End: pair.End}
	}
	err = c.request(SwapExecutionsRouteName, req, &p)
	return
}

func (c *Client) ArbExecutions(startHeight, endHeight uint64) (p []*dex.ArbExecution, err lib.ErrorI) {
	err = c.request(ArbExecutionsRouteName, heightsRequest{heightRequest: heightRequest{Height: endHeight}, StartHeight: startHeight}, &p)
	return
}

func (c *Client) Events(height uint64, eventType lib.EventType) (p lib.Events, err lib.ErrorI) {
	err = c.request(EventsRouteName, eventsRequest{heightRequest: heightRequest{Height: height}, EventType: eventType}, &p)
	return
}

func (c *Client) Candlesticks(d dex.DirectedTradingPair, startHeight uint64, limit int) (p []*dex.Candlestick, err lib.ErrorI) {
	err = c.request(CandlesticksRouteName, candlesticksRequest{
		directedPairRequest: directedPairRequest{Start: d.Start, End: d.End},
		StartHeight:         startHeight,
		Limit:               limit,
	}, &p)
	return
}

func (c *Client) CandlestickSummary(d dex.DirectedTradingPair, startHeight uint64, limit int) (p *dex.CandlestickSummary, err lib.ErrorI) {
	p = new(dex.CandlestickSummary)
	err = c.request(CandlestickSummaryRouteName, candlesticksRequest{
		directedPairRequest: directedPairRequest{Start: d.Start, End: d.End},
		StartHeight:         startHeight,
		Limit:               limit,
	}, p)
	return
}

func (c *Client) SimulateTrade(input dex.Value, output dex.AssetId, singleHop bool) (p *dex.SimulateTradeResult, err lib.ErrorI) {
	p = new(dex.SimulateTradeResult)
	err = c.request(SimulateTradeRouteName, simulateTradeRequest{Input: input, Output: output, SingleHop: singleHop}, p)
	return
}

func (c *Client) VCBBalance(asset dex.AssetId) (p *VCBBalanceResponse, err lib.ErrorI) {
	p = new(VCBBalanceResponse)
	err = c.request(VCBBalanceRouteName, assetRequest{AssetId: asset}, p)
	return
}

// ADMIN RPC CALLS BELOW

func (c *Client) ApplyBlock(block *dex.Block) (p *ApplyBlockResponse, err lib.ErrorI) {
	p = new(ApplyBlockResponse)
	bz, err := lib.MarshalJSON(block)
	if err != nil {
		return
	}
	err = c.post(ApplyBlockRouteName, bz, p, true)
	return
}

func (c *Client) ResourceUsage() (p *ResourceUsageResponse, err lib.ErrorI) {
	p = new(ResourceUsageResponse)
	err = c.get(ResourceUsageRouteName, "", p, true)
	return
}

func (c *Client) Config() (p *lib.Config, err lib.ErrorI) {
	p = new(lib.Config)
	err = c.get(ConfigRouteName, "", p, true)
	return
}

func (c *Client) request(routeName string, request any, ptr any) lib.ErrorI {
	bz, err := lib.MarshalJSON(request)
	if err != nil {
		return err
	}
	return c.post(routeName, bz, ptr)
}

func (c *Client) url(routeName, param string, admin bool) string {
	if admin {
		return c.adminRPCURL + routePaths[routeName].Path + param
	}
	return c.rpcURL + routePaths[routeName].Path + param
}

func (c *Client) post(routeName string, json []byte, ptr any, admin ...bool) lib.ErrorI {
	bz, err := c.do(func() (*http.Response, error) {
		return c.client.Post(c.url(routeName, "", len(admin) == 1 && admin[0]), ApplicationJSON, bytes.NewReader(json))
	})
	if err != nil {
		return err
	}
	return lib.UnmarshalJSON(bz, ptr)
}

func (c *Client) get(routeName, param string, ptr any, admin ...bool) lib.ErrorI {
	bz, err := c.do(func() (*http.Response, error) {
		return c.client.Get(c.url(routeName, param, len(admin) == 1 && admin[0]))
	})
	if err != nil {
		return err
	}
	return lib.UnmarshalJSON(bz, ptr)
}

// do() executes the request with exponential backoff, only unreachable servers, rate limiting and server failures are retried
func (c *Client) do(request func() (*http.Response, error)) (bz []byte, err lib.ErrorI) {
	operation := func() error {
		resp, e := request()
		if e != nil {
			err = lib.ErrPostRequest(e)
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		if bz, e = io.ReadAll(resp.Body); e != nil {
			err = lib.ErrReadBody(e)
			return err
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			err = nil
			return nil
		case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
			err = lib.ErrHttpStatus(resp.Status, resp.StatusCode, bz)
			return err
		default:
			err = lib.ErrHttpStatus(resp.Status, resp.StatusCode, bz)
			return backoff.Permanent(err)
		}
	}
	_ = backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries))
	return
}
