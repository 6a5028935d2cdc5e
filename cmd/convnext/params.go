package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/vision/internal/config"
	"github.com/born-ml/vision/internal/models"
	"github.com/born-ml/vision/internal/nn"
)

func newParamsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "params [block|model]",
		Short:     "List the parameters of the configured block or model",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"block", "model"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load(cmd)
			if err != nil {
				return err
			}
			module, err := buildModule(args, cfg.Block, cfg.Model, global.backend(), cfg.Seed)
			if err != nil {
				return err
			}
			writeParamTable(cmd.OutOrStdout(), module)
			return nil
		},
	}
}

// buildModule returns the block unless args selects the model.
func buildModule(args []string, block nn.BlockConfig, model config.ModelConfig, backend *cpuBackend, seed int64) (nn.Module[*cpuBackend], error) {
	if len(args) > 0 && args[0] == "model" {
		return models.New(model, backend, newRand(seed))
	}
	return nn.NewConvNeXtBlock(block, backend, newRand(seed))
}

func writeParamTable(w io.Writer, module nn.Module[*cpuBackend]) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"NAME", "SHAPE", "COUNT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	for _, p := range module.Parameters() {
		table.Append([]string{p.Name(), p.Shape().String(), strconv.Itoa(p.NumElements())})
	}
	table.Render()

	total := nn.CountParameters(module)
	fmt.Fprintf(w, "\ntotal: %s parameters (%s)\n", humanize.Comma(int64(total)), humanize.SIWithDigits(float64(total), 1, ""))
}
