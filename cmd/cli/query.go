package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "query the settlement engine rpc",
}

var (
	height, startHeight, limit, includeClosed, singleHop, asJSON = uint64(0), uint64(0), 0, false, false, false
)

func init() {
	queryCmd.PersistentFlags().Uint64Var(&height, "height", 0, "height for the query, 0 is latest")
	queryCmd.PersistentFlags().Uint64Var(&startHeight, "start-height", 0, "starting height for queries with a range")
	queryCmd.PersistentFlags().IntVar(&limit, "limit", 0, "maximum number of candlesticks, 0 is unlimited")
	queryCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print the raw json instead of a table")
	positionsCmd.Flags().BoolVar(&includeClosed, "include-closed", false, "also list positions that are no longer opened")
	simulateCmd.Flags().BoolVar(&singleHop, "single-hop", false, "only trade directly against positions of the pair")
	queryCmd.AddCommand(heightCmd)
	queryCmd.AddCommand(paramsCmd)
	queryCmd.AddCommand(outputDataCmd)
	queryCmd.AddCommand(batchesCmd)
	queryCmd.AddCommand(outputDataDiffCmd)
	queryCmd.AddCommand(positionCmd)
	queryCmd.AddCommand(positionsCmd)
	queryCmd.AddCommand(swapExecutionsCmd)
	queryCmd.AddCommand(arbExecutionsCmd)
	queryCmd.AddCommand(candlesticksCmd)
	queryCmd.AddCommand(candlestickSummaryCmd)
	queryCmd.AddCommand(simulateCmd)
	queryCmd.AddCommand(vcbBalanceCmd)
	queryCmd.AddCommand(eventsCmd)
}

var (
	heightCmd = &cobra.Command{
		Use:   "height",
		Short: "query the height of the last applied block",
		Run: func(cmd *cobra.Command, args []string) {
			h, err := client.Height()
			if err != nil {
				l.Fatal(err.Error())
			}
			writeToConsole(h.Height, nil)
		},
	}

	paramsCmd = &cobra.Command{
		Use:   "params",
		Short: "query the dex parameters",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Params())
		},
	}

	outputDataCmd = &cobra.Command{
		Use:   "output-data <asset> <asset> --height=1",
		Short: "query the batch swap output data of a pair",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.OutputData(height, tradingPair(args[0], args[1])))
		},
	}

	batchesCmd = &cobra.Command{
		Use:   "batches --height=1",
		Short: "query every batch settled at a height",
		Run: func(cmd *cobra.Command, args []string) {
			batches, err := client.OutputDataByHeight(height)
			if err != nil || !tabular() {
				writeToConsole(batches, err)
				return
			}
			table := newTable("Height", "Pair", "Delta 1", "Delta 2", "Lambda 1", "Lambda 2", "Unfilled 1", "Unfilled 2")
			for _, b := range batches {
				appendRow(table, b.Height, b.TradingPair.String(), b.Delta1, b.Delta2, b.Lambda1, b.Lambda2, b.Unfilled1, b.Unfilled2)
			}
			renderTable(table)
		},
	}

	outputDataDiffCmd = &cobra.Command{
		Use:   "output-data-diff --start-height=1 --height=2",
		Short: "query the difference between the batches settled at two heights",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.OutputDataDiff(startHeight, height))
		},
	}

	positionCmd = &cobra.Command{
		Use:   "position <id>",
		Short: "query a position by id",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := dex.PositionIdFromHex(args[0])
			if err != nil {
				l.Fatal(err.Error())
			}
			writeToConsole(client.Position(id))
		},
	}

	positionsCmd = &cobra.Command{
		Use:   "positions <asset> <asset> --include-closed",
		Short: "query the positions of a pair",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			positions, err := client.Positions(tradingPair(args[0], args[1]), includeClosed)
			if err != nil || !tabular() {
				writeToConsole(positions, err)
				return
			}
			table := newTable("Id", "State", "Fee (bps)", "P", "Q", "Reserve 1", "Reserve 2")
			for _, p := range positions {
				c := p.Phi.Component
				appendRow(table, p.Id().String()[:16], p.State.String(), c.Fee, c.P, c.Q, p.Reserves.R1, p.Reserves.R2)
			}
			renderTable(table)
		},
	}

	swapExecutionsCmd = &cobra.Command{
		Use:   "swap-executions [<start asset> <end asset>] --start-height=1 --height=2",
		Short: "query the batch swap executions in a height range",
		Run: func(cmd *cobra.Command, args []string) {
			var pair *dex.DirectedTradingPair
			if len(args) >= 2 {
				pair = &dex.DirectedTradingPair{Start: parseAsset(args[0]), End: parseAsset(args[1])}
			}
			executions, err := client.SwapExecutions(startHeight, height, pair)
			if err != nil || !tabular() {
				writeToConsole(executions, err)
				return
			}
			table := newTable("Height", "Direction", "Input", "Output", "Traces")
			for _, e := range executions {
				if e.Execution == nil {
					continue
				}
				appendRow(table, e.Height, e.Pair.String(), e.Execution.Input.Amount, e.Execution.Output.Amount, len(e.Execution.Traces))
			}
			renderTable(table)
		},
	}

	arbExecutionsCmd = &cobra.Command{
		Use:   "arb-executions --start-height=1 --height=2",
		Short: "query the arbitrage executions in a height range",
		Run: func(cmd *cobra.Command, args []string) {
			arbs, err := client.ArbExecutions(startHeight, height)
			if err != nil || !tabular() {
				writeToConsole(arbs, err)
				return
			}
			table := newTable("Height", "Input", "Output", "Surplus")
			for _, a := range arbs {
				if a.SwapExecution == nil {
					continue
				}
				in, out := a.SwapExecution.Input.Amount, a.SwapExecution.Output.Amount
				appendRow(table, a.Height, in, out, out-in)
			}
			renderTable(table)
		},
	}

	candlesticksCmd = &cobra.Command{
		Use:   "candlesticks <start asset> <end asset> --start-height=1 --limit=100",
		Short: "query the candlesticks of a directed pair",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			d := dex.DirectedTradingPair{Start: parseAsset(args[0]), End: parseAsset(args[1])}
			candles, err := client.Candlesticks(d, startHeight, limit)
			if err != nil || !tabular() {
				writeToConsole(candles, err)
				return
			}
			table := newTable("Height", "Open", "High", "Low", "Close", "Direct Volume", "Swap Volume")
			for _, c := range candles {
				appendRow(table, c.Height, c.Open, c.High, c.Low, c.Close, c.DirectVolume, c.SwapVolume)
			}
			renderTable(table)
		},
	}

	candlestickSummaryCmd = &cobra.Command{
		Use:   "candlestick-summary <start asset> <end asset> --start-height=1 --limit=100",
		Short: "query the statistics of the close prices of a directed pair",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			d := dex.DirectedTradingPair{Start: parseAsset(args[0]), End: parseAsset(args[1])}
			writeToConsole(client.CandlestickSummary(d, startHeight, limit))
		},
	}

	simulateCmd = &cobra.Command{
		Use:   "simulate-trade <amount> <input asset> <output asset> --single-hop",
		Short: "simulate a trade against the current positions",
		Args:  cobra.MinimumNArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				l.Fatal(err.Error())
			}
			writeToConsole(client.SimulateTrade(dex.Value{Amount: amount, AssetId: parseAsset(args[1])}, parseAsset(args[2]), singleHop))
		},
	}

	eventsCmd = &cobra.Command{
		Use:   "events [<event type>] --height=1",
		Short: "query the events emitted by a block, optionally of one type",
		Run: func(cmd *cobra.Command, args []string) {
			var eventType lib.EventType
			if len(args) > 0 {
				eventType = lib.EventType(args[0])
			}
			events, err := client.Events(height, eventType)
			if err != nil || !tabular() {
				writeToConsole(events, err)
				return
			}
			table := newTable("Height", "Reference", "Type", "Message")
			for _, e := range events {
				appendRow(table, e.Height, e.Reference, string(e.EventType), string(e.Msg))
			}
			renderTable(table)
		},
	}

	vcbBalanceCmd = &cobra.Command{
		Use:   "vcb-balance <asset>",
		Short: "query the value the dex holds for an asset",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.VCBBalance(parseAsset(args[0])))
		},
	}
)

// tradingPair() canonicalizes two assets given on the command line
func tradingPair(a, b string) dex.TradingPair {
	pair, err := dex.NewTradingPair(parseAsset(a), parseAsset(b))
	if err != nil {
		l.Fatal(err.Error())
	}
	return pair
}

// tabular() is true when tables should be printed instead of json, piped output stays machine readable
func tabular() bool { return !asJSON && term.IsTerminal(int(os.Stdout.Fd())) }

func newTable(header ...any) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header(header...)
	return table
}

// appendRow() formats integers with digit grouping and floats with 6 decimals
func appendRow(table *tablewriter.Table, cells ...any) {
	p := message.NewPrinter(language.English)
	row := make([]any, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case int, uint32, uint64:
			row[i] = p.Sprintf("%d", v)
		case float64:
			row[i] = p.Sprintf("%.6f", v)
		default:
			row[i] = fmt.Sprint(v)
		}
	}
	if err := table.Append(row...); err != nil {
		l.Fatal(err.Error())
	}
}

func renderTable(table *tablewriter.Table) {
	if err := table.Render(); err != nil {
		l.Fatal(err.Error())
	}
}
