package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inferloop/tabanon/cmd/cli/config"
	"github.com/inferloop/tabanon/internal/risk"
	"github.com/inferloop/tabanon/internal/storage/file"
)

type RiskOptions struct {
	ConfigFile string
	InputFile  string
	Estimator  string
	Threshold  float64
	Format     string
	Verbose    bool
}

func NewRiskCmd() *cobra.Command {
	opts := &RiskOptions{}

	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Estimate re-identification risk of a released dataset",
		Long: `Estimate per-record re-identification risk of an already released CSV under
the wildcard model, where "*" in a quasi-identifier matches any value.`,
		Example: `  # Risk of a previous release, with the attributes of the job file
  tabanon risk --config job.yaml --input result/released.csv

  # Population estimate at a 10% sampling fraction, as JSON
  TABANON_RISK_SAMPLING_FRACTION=0.1 tabanon risk --config job.yaml --input released.csv --estimator population --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose, _ = cmd.Flags().GetBool("verbose")
			if opts.ConfigFile == "" {
				opts.ConfigFile, _ = cmd.Flags().GetString("config")
			}
			if !cmd.Flags().Changed("threshold") {
				opts.Threshold = -1
			}
			return runRisk(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.InputFile, "input", "i", "", "Released CSV to assess (required)")
	cmd.Flags().StringVar(&opts.Estimator, "estimator", "", "Estimator family (sample, population, benedetti_franconi)")
	cmd.Flags().Float64Var(&opts.Threshold, "threshold", 0.1, "Risk threshold")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "Output format (text, json)")

	cmd.MarkFlagRequired("input")

	return cmd
}

func runRisk(ctx context.Context, opts *RiskOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	job, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	if opts.Estimator != "" {
		job.Risk.Estimator = risk.Family(opts.Estimator)
	}
	if opts.Threshold >= 0 {
		job.Risk.Threshold = opts.Threshold
	}
	logger, err := job.NewLogger(opts.Verbose)
	if err != nil {
		return err
	}

	reader, err := file.NewReader(&file.ReaderConfig{
		Path:      opts.InputFile,
		Delimiter: job.Output.Delimiter,
		Header:    job.Output.IncludeHeaders,
	}, logger)
	if err != nil {
		return err
	}
	ds, err := reader.Read(ctx, job.ReleasedSchema())
	if err != nil {
		return err
	}

	estimator, err := risk.NewEstimator(&job.Risk, logger)
	if err != nil {
		return err
	}
	assessment, err := estimator.Estimate(ds)
	if err != nil {
		return err
	}
	summary := assessment.Summary()

	switch opts.Format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	case "text", "":
		fmt.Fprintf(out, " - Records: %d (%d at risk)\n", summary.Records, summary.RecordsAtRisk)
		printRisk(out, summary)
		return nil
	}
	return fmt.Errorf("unsupported output format %q", opts.Format)
}
