package cli

import (
	"os"
	"strings"

	"github.com/canopy-network/batchdex/dex"
	"github.com/canopy-network/batchdex/lib"
	"github.com/spf13/cobra"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "admin only operations for the engine",
}

func init() {
	adminCmd.AddCommand(resourceUsageCmd)
	adminCmd.AddCommand(configCmd)
	applyBlockCmd.Flags().BoolVar(&asJSON, "json", false, "print the raw json instead of a table")
}

var (
	resourceUsageCmd = &cobra.Command{
		Use:   "resource-usage",
		Short: "get the resource usage of the engine process and its host",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.ResourceUsage())
		},
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "get the configuration the engine is running with",
		Run: func(cmd *cobra.Command, args []string) {
			writeToConsole(client.Config())
		},
	}

	applyBlockCmd = &cobra.Command{
		Use:   "apply-block <file.json>",
		Short: "submit a block of actions read from a json file, a zero height applies it as the next block",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			block, err := readBlock(args[0])
			if err != nil {
				l.Fatal(err.Error())
			}
			resp, err := client.ApplyBlock(block)
			if err != nil || !tabular() {
				writeToConsole(resp, err)
				return
			}
			writeResults(resp.Height, resp.Results)
		},
	}
)

// readBlock() reads a json encoded block from the file
func readBlock(path string) (*dex.Block, lib.ErrorI) {
	bz, err := os.ReadFile(path)
	if err != nil {
		return nil, lib.ErrReadFile(err)
	}
	block := new(dex.Block)
	if e := lib.UnmarshalJSON(bz, block); e != nil {
		return nil, e
	}
	return block, nil
}

// writeResults() prints the outcome of every action of an applied block
func writeResults(height uint64, results []*dex.ActionResult) {
	l.Infof("Applied block %d with %d actions", height, len(results))
	table := newTable("#", "Action", "Success", "Position", "Released", "Error")
	for _, r := range results {
		var position string
		if r.PositionId != nil {
			position = r.PositionId.String()[:16]
		}
		released := make([]string, 0, len(r.Released))
		for _, v := range r.Released {
			released = append(released, v.String())
		}
		if r.Claim != nil {
			released = append(released, r.Claim.Output1.String(), r.Claim.Output2.String())
		}
		appendRow(table, r.Index, r.Kind, r.Success, position, strings.Join(released, " "), r.Error)
	}
	renderTable(table)
}
