package dex

import (
	"math"

	"github.com/canopy-network/batchdex/lib"
	"gonum.org/v1/gonum/stat"
)

/*
	Candlesticks summarize the prices a directed pair traded at during a block

	Executions are recorded in the order they happen as (price, volume) entries under the directed pair,
	and folded into a single candlestick per pair at the end of the block
	Prices are in units of the end asset per unit of the start asset
*/

// Candlestick is the price summary of a directed pair at a height
type Candlestick struct {
	Height       uint64  `json:"height"`
	Open         float64 `json:"open"`
	Close        float64 `json:"close"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	DirectVolume float64 `json:"directVolume"` // input traded directly against positions of the pair
	SwapVolume   float64 `json:"swapVolume"`   // input of the pair's batch swaps, possibly routed elsewhere
}

// CandlestickSummary is the distribution of the close prices of a range of candlesticks
type CandlestickSummary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
}

// priceRecord is a single execution of the current block
type priceRecord struct {
	Price        float64 `json:"price"`
	DirectVolume uint64  `json:"directVolume,omitempty"`
	SwapVolume   uint64  `json:"swapVolume,omitempty"`
}

// recordPositionExecution() records a trade against a position, priced at the position's price before the trade
func (s *StateMachine) recordPositionExecution(prev, p *Position) lib.ErrorI {
	if prev.Reserves == p.Reserves {
		return nil
	}
	// the direction is given by the reserve that increased
	pair, d := prev.Phi.Pair, prev.Phi.Pair.Directed21()
	volume := p.Reserves.R2 - min(p.Reserves.R2, prev.Reserves.R2)
	if p.Reserves.R1 > prev.Reserves.R1 {
		d, volume = pair.Directed12(), p.Reserves.R1-prev.Reserves.R1
	}
	if volume == 0 {
		return nil
	}
	bare, _, err := prev.Phi.Orient(d.Start)
	if err != nil {
		return err
	}
	price, err := bare.EffectivePriceInv()
	if err != nil {
		return err
	}
	return s.appendPriceRecord(d, priceRecord{Price: price.Float64(), DirectVolume: volume})
}

// recordSwapExecution() records a batch swap execution at its average price
func (s *StateMachine) recordSwapExecution(d DirectedTradingPair, exec *SwapExecution) lib.ErrorI {
	if exec.Input.Amount == 0 || exec.Output.Amount == 0 {
		return nil
	}
	price := float64(exec.Output.Amount) / float64(exec.Input.Amount)
	return s.appendPriceRecord(d, priceRecord{Price: price, SwapVolume: exec.Input.Amount})
}

// appendPriceRecord() adds an execution to the block's records of the directed pair
func (s *StateMachine) appendPriceRecord(d DirectedTradingPair, r priceRecord) lib.ErrorI {
	var records []priceRecord
	if _, err := s.getJSON(KeyForCandleBlock(d), &records); err != nil {
		return err
	}
	return s.setJSON(KeyForCandleBlock(d), append(records, r))
}

// FinalizeCandlesticks() folds the block's price records of every directed pair into a candlestick
func (s *StateMachine) FinalizeCandlesticks() lib.ErrorI {
	type block struct {
		pair    DirectedTradingPair
		records []priceRecord
	}
	var blocks []block
	err := s.IterateAndExecute(CandleBlockPrefix(), func(k, v []byte) lib.ErrorI {
		d, e := pairFromCandleBlockKey(k)
		if e != nil {
			return e
		}
		b := block{pair: d}
		if e = lib.UnmarshalJSON(v, &b.records); e != nil {
			return e
		}
		blocks = append(blocks, b)
		return nil
	})
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if len(b.records) != 0 {
			c := newCandlestick(s.height, b.records)
			if err = s.setJSON(KeyForCandlestick(b.pair, s.height), c); err != nil {
				return err
			}
		}
		if err = s.Delete(KeyForCandleBlock(b.pair)); err != nil {
			return err
		}
	}
	return nil
}

// newCandlestick() summarizes the records in execution order
func newCandlestick(height uint64, records []priceRecord) *Candlestick {
	c := &Candlestick{Height: height, Open: records[0].Price, Low: math.Inf(1)}
	for _, r := range records {
		c.Close = r.Price
		c.High, c.Low = math.Max(c.High, r.Price), math.Min(c.Low, r.Price)
		c.DirectVolume += float64(r.DirectVolume)
		c.SwapVolume += float64(r.SwapVolume)
	}
	return c
}

// Candlesticks() lists up to limit candlesticks of the directed pair from the start height on
func (s *StateMachine) Candlesticks(d DirectedTradingPair, startHeight uint64, limit int) (candles []*Candlestick, err lib.ErrorI) {
	it, err := s.store.Iterator(CandlestickPrefix(d))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid() && (limit <= 0 || len(candles) < limit); it.Next() {
		height, e := heightFromKey(it.Key(), 2)
		if e != nil {
			return nil, e
		}
		if height < startHeight {
			continue
		}
		c := new(Candlestick)
		if e = lib.UnmarshalJSON(it.Value(), c); e != nil {
			return nil, e
		}
		candles = append(candles, c)
	}
	return
}

// SummarizeCandlesticks() computes the distribution of the close prices
func SummarizeCandlesticks(candles []*Candlestick) *CandlestickSummary {
	summary := &CandlestickSummary{Count: len(candles)}
	if len(candles) == 0 {
		return summary
	}
	closes := make([]float64, len(candles))
	summary.Low = math.Inf(1)
	for i, c := range candles {
		closes[i] = c.Close
		summary.High, summary.Low = math.Max(summary.High, c.High), math.Min(summary.Low, c.Low)
	}
	summary.Mean, summary.StdDev = stat.MeanStdDev(closes, nil)
	if len(candles) == 1 {
		summary.StdDev = 0
	}
	return summary
}

// CandlestickSummary() summarizes up to limit candlesticks of the directed pair from the start height on
func (s *StateMachine) CandlestickSummary(d DirectedTradingPair, startHeight uint64, limit int) (*CandlestickSummary, lib.ErrorI) {
	candles, err := s.Candlesticks(d, startHeight, limit)
	if err != nil {
		return nil, err
	}
	return SummarizeCandlesticks(candles), nil
}
