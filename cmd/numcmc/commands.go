package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var chainPath string

	rootCmd := &cobra.Command{
		Use:   "numcmc",
		Short: "Reweighted posterior densities and credible intervals from MCMC chains",
		Long: `numcmc streams an MCMC chain of neutrino oscillation parameters once,
fills every requested histogram under new priors, and reports HPD
credible intervals.

Settings are read from the environment (or a .env file):
- NUMCMC_CHAIN_FILE, NUMCMC_CHAIN_TABLE, DATABASE_URL
- NUMCMC_BATCH_SIZE, NUMCMC_MAX_STEPS, NUMCMC_WORKERS, NUMCMC_PROGRESS_EVERY
- NUMCMC_LEVELS, NUMCMC_ORDERING_VARIABLE
- PORT, GIN_MODE`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&chainPath, "chain", "", "chain file (.xlsx or .csv), overrides NUMCMC_CHAIN_FILE and DATABASE_URL")

	chain := func() string { return chainPath }
	rootCmd.AddCommand(
		newFillCmd(chain),
		newServeCmd(chain),
		newDescribeCmd(chain),
		newCatalogueCmd(),
		newDemoCmd(),
	)
	return rootCmd
}

func newFillCmd(chainPath func() string) *cobra.Command {
	var jobPath string
	var format string

	cmd := &cobra.Command{
		Use:   "fill",
		Short: "Fill the plots of a job file and print the interval report",
		Long: `Fill every plot of a job file in one pass over the chain, compute the
credible intervals and print the report.

Example: numcmc fill --job job.json --chain chain.xlsx --format html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFill(cmd.Context(), cmd.OutOrStdout(), jobPath, chainPath(), format)
		},
	}

	cmd.Flags().StringVar(&jobPath, "job", "", "Job file describing the plots")
	cmd.Flags().StringVar(&format, "format", "md", "Report format: md|html")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newServeCmd(chainPath func() string) *cobra.Command {
	var jobPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Fill the plots of a job file and serve them over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, jobPath, chainPath())
		},
	}

	cmd.Flags().StringVar(&jobPath, "job", "", "Job file describing the plots")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

func newDescribeCmd(chainPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [variable...]",
		Short: "Summarize chain columns or derived variables",
		Long: `Stream the chain and print marginal statistics for each variable.

Example: numcmc describe --chain chain.csv DeltaCP SinSqTheta23 JarlskogInvariant`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd.Context(), cmd.OutOrStdout(), chainPath(), args)
		},
	}
}

func newCatalogueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalogue",
		Short: "Print the reparameterization table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogue(cmd.OutOrStdout())
		},
	}
}

func newDemoCmd() *cobra.Command {
	var opts demoOptions

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a job against a synthetic oscillation chain",
		Long: `Generate a synthetic chain with known generation priors, run a job on it
and print the report. The chain can also be exported to a file or a
PostgreSQL table for use with fill.

Example: numcmc demo --steps 50000 --export chain.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.jobPath, "job", "", "Job file; a built-in job is used when empty")
	cmd.Flags().StringVar(&opts.format, "format", "md", "Report format: md|html")
	cmd.Flags().IntVar(&opts.steps, "steps", 20000, "Number of synthetic steps")
	cmd.Flags().Int64Var(&opts.seed, "seed", 42, "Random seed for the synthetic chain")
	cmd.Flags().StringVar(&opts.exportFile, "export", "", "Also write the chain to this .xlsx or .csv file")
	cmd.Flags().BoolVar(&opts.exportDB, "export-db", false, "Also save the chain to DATABASE_URL under NUMCMC_CHAIN_TABLE")
	return cmd
}
