package main

import (
	"flag"
	"fmt"
	"math/rand"
	"runtime"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/born-ml/vision/internal/backend/cpu"
	"github.com/born-ml/vision/internal/config"
)

const version = "v0.1.0"

type cpuBackend = cpu.CPUBackend

// globalOptions are shared by every command.
type globalOptions struct {
	configPath string
	seed       int64
	workers    int
}

// NewCLI returns the root command.
func NewCLI() *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:           "convnext",
		Short:         "ConvNeXt blocks and CIFAR-10 tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().Int64Var(&opts.seed, "seed", 0, "random seed (overrides the configuration)")
	rootCmd.PersistentFlags().IntVar(&opts.workers, "workers", runtime.NumCPU(), "kernel goroutines")

	rootCmd.AddCommand(
		newSmokeCmd(opts),
		newParamsCmd(opts),
		newCIFARCmd(opts),
		newExportCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// load returns the configuration file, or the defaults, with flag overrides
// applied.
func (o *globalOptions) load(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return config.Config{}, err
		}
		klog.V(1).Infof("loaded configuration from %s", o.configPath)
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = o.seed
	}
	return cfg, nil
}

func (o *globalOptions) backend() *cpuBackend {
	return cpu.New(cpu.WithWorkers(o.workers))
}

func newRand(seed int64) *rand.Rand {
	//nolint:gosec // reproducible experiments, not cryptography
	return rand.New(rand.NewSource(seed))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "convnext %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
