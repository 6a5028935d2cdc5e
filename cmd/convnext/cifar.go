package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/born-ml/vision/internal/checkpoint"
	"github.com/born-ml/vision/internal/cifar"
	"github.com/born-ml/vision/internal/models"
	"github.com/born-ml/vision/internal/nn"
)

type cifarOptions struct {
	dir        string
	partition  string
	batchSize  int
	predict    bool
	checkpoint string
}

func newCIFARCmd(global *globalOptions) *cobra.Command {
	opts := &cifarOptions{}
	cmd := &cobra.Command{
		Use:   "cifar",
		Short: "Read a CIFAR-10 partition and convert it to tensors",
		Long: "Reads the binary CIFAR-10 batches from --dir (the extracted " + cifar.BatchesDir +
			" directory or its parent), prints the label distribution and converts every batch to a normalized tensor.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCIFAR(cmd, global, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.dir, "dir", "", "dataset directory (default from configuration)")
	f.StringVar(&opts.partition, "partition", "test", "train or test")
	f.IntVar(&opts.batchSize, "batch-size", 0, "batch size (default from configuration)")
	f.BoolVar(&opts.predict, "predict", false, "run the configured model on every batch and report accuracy (requires --checkpoint)")
	f.StringVar(&opts.checkpoint, "checkpoint", "", "safetensors weights for the configured model, as written by export model")
	return cmd
}

func runCIFAR(cmd *cobra.Command, global *globalOptions, opts *cifarOptions) error {
	cfg, err := global.load(cmd)
	if err != nil {
		return err
	}
	if opts.dir != "" {
		cfg.Data.Dir = opts.dir
	}
	if opts.batchSize != 0 {
		cfg.Data.BatchSize = opts.batchSize
	}
	if err := cfg.Data.Validate(); err != nil {
		return err
	}
	if opts.predict && opts.checkpoint == "" {
		return errors.New("--predict needs --checkpoint: a freshly initialized model has untrained weights")
	}
	partition, err := cifar.ParsePartition(opts.partition)
	if err != nil {
		return err
	}
	norm, err := cifar.NormalizationByName(cfg.Data.Normalization)
	if err != nil {
		return err
	}

	examples, err := cifar.Load(cfg.Data.Dir, partition)
	if err != nil {
		return err
	}
	if len(examples) == 0 {
		return errors.Errorf("no examples in %s partition of %s", partition, cfg.Data.Dir)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s examples: %s\n\n", partition, humanize.Comma(int64(len(examples))))
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"LABEL", "NAME", "COUNT"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for label, count := range cifar.CountLabels(examples) {
		table.Append([]string{strconv.Itoa(label), cifar.LabelName(label), strconv.Itoa(count)})
	}
	table.Render()

	backend := global.backend()
	rng := newRand(cfg.Seed)
	var model nn.Module[*cpuBackend]
	if opts.predict {
		if model, err = models.New(cfg.Model, backend, rng); err != nil {
			return err
		}
		if err := checkpoint.Load(opts.checkpoint, model); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nloaded weights from %s\n", opts.checkpoint)
	}

	shuffle := rng
	if !cfg.Data.Shuffle || partition == cifar.Test {
		shuffle = nil
	}
	it := cifar.Batches(examples, cfg.Data.BatchSize, shuffle, cfg.Data.DropLast && partition == cifar.Train)
	bar := newProgressBar(cmd, it.Len(), "batches")
	seen, correct := 0, 0
	for batch, ok := it.Next(); ok; batch, ok = it.Next() {
		x, labels := cifar.ToTensor(batch, norm, backend)
		if model != nil {
			for i, p := range cifar.Predict(model.Forward(nn.EvalPass(), x)) {
				if p == labels[i] {
					correct++
				}
			}
		}
		seen += len(batch)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	fmt.Fprintf(out, "\nconverted %s examples in %d batches of %d\n", humanize.Comma(int64(seen)), it.Len(), cfg.Data.BatchSize)
	if model != nil {
		fmt.Fprintf(out, "accuracy: %.2f%% (%d/%d)\n", 100*float64(correct)/float64(seen), correct, seen)
	}
	return nil
}
