package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/vision/internal/checkpoint"
	"github.com/born-ml/vision/internal/config"
	"github.com/born-ml/vision/internal/nn"
)

type exportOptions struct {
	output string
	half   bool
}

func newExportCmd(global *globalOptions) *cobra.Command {
	opts := &exportOptions{}
	cmd := &cobra.Command{
		Use:       "export [block|model]",
		Short:     "Initialize the configured block or model and write it as safetensors",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"block", "model"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, global, opts, args)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output .safetensors file")
	cmd.Flags().BoolVar(&opts.half, "half", false, "store float32 tensors as float16")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runExport(cmd *cobra.Command, global *globalOptions, opts *exportOptions, args []string) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	module, err := buildModule(args, cfg.Block, cfg.Model, global.backend(), cfg.Seed)
	if err != nil {
		return err
	}
	doc, err := config.Marshal(cfg)
	if err != nil {
		return err
	}

	kind := "block"
	if len(args) > 0 {
		kind = args[0]
	}
	metadata := map[string]string{
		"kind":    kind,
		"config":  string(doc),
		"version": version,
	}
	if err := checkpoint.Save(opts.output, module, checkpoint.Options{Half: opts.half, Metadata: metadata}); err != nil {
		return errors.WithMessage(err, "export")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s parameters in %d tensors to %s\n",
		humanize.Comma(int64(nn.CountParameters(module))), len(nn.State(module)), opts.output)
	return nil
}
