package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/born-ml/vision/internal/nn"
	"github.com/born-ml/vision/internal/tensor"
)

type smokeOptions struct {
	block  nn.BlockConfig
	batch  int
	height int
	width  int
	repeat int
}

func newSmokeCmd(global *globalOptions) *cobra.Command {
	opts := &smokeOptions{block: nn.DefaultBlockConfig(16)}
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run a ConvNeXt block on random input and check the output shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSmoke(cmd, global, opts)
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.block.Channels, "channels", opts.block.Channels, "block channels")
	f.IntVar(&opts.block.KernelSize, "kernel-size", opts.block.KernelSize, "depthwise kernel size (odd)")
	f.IntVar(&opts.block.WideningFactor, "widening", opts.block.WideningFactor, "inverted bottleneck widening factor")
	f.Float64Var(&opts.block.DropPath, "drop-path", opts.block.DropPath, "drop path probability in [0, 1)")
	f.Float64Var(&opts.block.Eps, "eps", opts.block.Eps, "layer norm epsilon")
	f.IntVar(&opts.batch, "batch", 8, "batch size")
	f.IntVar(&opts.height, "height", 32, "input height")
	f.IntVar(&opts.width, "width", 32, "input width")
	f.IntVar(&opts.repeat, "repeat", 1, "number of timed evaluation passes")
	return cmd
}

func runSmoke(cmd *cobra.Command, global *globalOptions, opts *smokeOptions) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	blockCfg := overrideBlock(cmd, cfg.Block, opts.block)
	if opts.batch <= 0 || opts.height <= 0 || opts.width <= 0 || opts.repeat <= 0 {
		return errors.Errorf("batch, height, width and repeat must be positive")
	}

	backend := global.backend()
	rng := newRand(cfg.Seed)
	block, err := nn.NewConvNeXtBlock(blockCfg, backend, rng)
	if err != nil {
		return err
	}

	shape := tensor.Shape{opts.batch, blockCfg.Channels, opts.height, opts.width}
	x := tensor.Randn[float32](shape, rng, backend)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "block:        %s\n", block)
	fmt.Fprintf(out, "parameters:   %s\n", humanize.Comma(int64(nn.CountParameters[*cpuBackend](block))))
	fmt.Fprintf(out, "input:        %s\n", x.Shape())

	var evalOut *tensor.Tensor[float32, *cpuBackend]
	var elapsed time.Duration
	var bar *progressbar.ProgressBar
	if opts.repeat > 1 {
		bar = newProgressBar(cmd, opts.repeat, "forward")
	}
	for i := 0; i < opts.repeat; i++ {
		start := time.Now()
		evalOut = block.Forward(nn.EvalPass(), x)
		elapsed += time.Since(start)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	trainOut := block.Forward(nn.TrainPass(rng), x)

	fmt.Fprintf(out, "output eval:  %s\n", evalOut.Shape())
	fmt.Fprintf(out, "output train: %s\n", trainOut.Shape())
	fmt.Fprintf(out, "eval pass:    %s\n", (elapsed / time.Duration(opts.repeat)).Round(time.Microsecond))

	if !evalOut.Shape().Equal(shape) || !trainOut.Shape().Equal(shape) {
		return errors.Errorf("output shape %s / %s differs from input shape %s", evalOut.Shape(), trainOut.Shape(), shape)
	}
	fmt.Fprintln(out, "ok")
	return nil
}

// overrideBlock applies the block flags the user set explicitly on top of
// base.
func overrideBlock(cmd *cobra.Command, base, flags nn.BlockConfig) nn.BlockConfig {
	f := cmd.Flags()
	if f.Changed("channels") {
		base.Channels = flags.Channels
	}
	if f.Changed("kernel-size") {
		base.KernelSize = flags.KernelSize
	}
	if f.Changed("widening") {
		base.WideningFactor = flags.WideningFactor
	}
	if f.Changed("drop-path") {
		base.DropPath = flags.DropPath
	}
	if f.Changed("eps") {
		base.Eps = flags.Eps
	}
	return base
}

func newProgressBar(cmd *cobra.Command, n int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
}
