package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inferloop/tabanon/cmd/cli/config"
	"github.com/inferloop/tabanon/internal/anonymizer"
	"github.com/inferloop/tabanon/internal/export"
	"github.com/inferloop/tabanon/internal/observability/metrics"
	"github.com/inferloop/tabanon/internal/risk"
	"github.com/inferloop/tabanon/internal/storage/file"
	"github.com/inferloop/tabanon/internal/storage/postgres"
	"github.com/inferloop/tabanon/internal/storage/s3"
	"github.com/inferloop/tabanon/pkg/interfaces"
)

type AnonymizeOptions struct {
	ConfigFile  string
	Output      string
	ReportPath  string
	MetricsAddr string
	PrintOutput bool
	Verbose     bool
}

func NewAnonymizeCmd() *cobra.Command {
	opts := &AnonymizeOptions{}

	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Anonymize a dataset with the least lossy compliant generalization",
		Long: `Search the generalization lattice of a dataset for the transformation with
the lowest information loss that satisfies every configured privacy model,
write the released table and report, and print a re-identification risk summary.`,
		Example: `  # Anonymize with the settings of a job file
  tabanon anonymize --config job.yaml

  # Override the output path and expose metrics while the search runs
  tabanon anonymize --config job.yaml --output result/released.csv --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose, _ = cmd.Flags().GetBool("verbose")
			if opts.ConfigFile == "" {
				opts.ConfigFile, _ = cmd.Flags().GetString("config")
			}
			return runAnonymize(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "Released CSV path (overrides output.path)")
	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "Report JSON path (overrides output.report_path)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run")
	cmd.Flags().BoolVar(&opts.PrintOutput, "print", false, "Print the released records")

	return cmd
}

func runAnonymize(ctx context.Context, opts *AnonymizeOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	job, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	if opts.Output != "" {
		job.Output.Path = opts.Output
	}
	if opts.ReportPath != "" {
		job.Output.ReportPath = opts.ReportPath
	}
	if opts.MetricsAddr != "" {
		job.Metrics.ListenAddress = opts.MetricsAddr
	}
	if err := job.Validate(); err != nil {
		return err
	}
	logger, err := job.NewLogger(opts.Verbose)
	if err != nil {
		return err
	}

	m, err := metrics.NewMetrics(&job.Metrics, logger)
	if err != nil {
		return err
	}
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer m.Stop(context.Background())

	started := time.Now()
	res, report, err := anonymizeJob(ctx, job, m, logger)
	if err != nil {
		m.RecordRun("failed", time.Since(started), 0, 0)
		pushMetrics(ctx, m, logger)
		return err
	}
	m.RecordRun("succeeded", time.Since(started), res.Loss, len(res.Suppressed))
	m.RecordRisk(report.Risk)
	release := export.NewRelease(res, report)

	sinks, err := openSinks(ctx, job, logger)
	if err != nil {
		return err
	}
	defer closeSinks(sinks, logger)
	for _, sink := range sinks {
		if err := writeRelease(ctx, sink, release, m); err != nil {
			return err
		}
	}
	pushMetrics(ctx, m, logger)

	printResult(out, res, job.Output.Path)
	if opts.PrintOutput {
		fmt.Fprintln(out, "\n - Output data")
		printRecords(out, res)
	}
	fmt.Fprintln(out, "\n - Risk analysis:")
	printRisk(out, report.Risk)
	return nil
}

func anonymizeJob(ctx context.Context, job *config.JobConfig, m *metrics.Metrics, logger *logrus.Logger) (*anonymizer.Result, *export.Report, error) {
	reader, err := file.NewReader(&job.Input, logger)
	if err != nil {
		return nil, nil, err
	}
	ds, err := reader.Read(ctx, job.Schema())
	if err != nil {
		return nil, nil, err
	}
	idx, err := job.BuildIndex(ds)
	if err != nil {
		return nil, nil, err
	}
	privacyCfg, err := job.PrivacyConfiguration()
	if err != nil {
		return nil, nil, err
	}

	anon := anonymizer.NewAnonymizer(job.SearchConfig(), logger)
	anon.SetObserver(m)
	res, err := anon.Anonymize(ctx, ds, idx, privacyCfg)
	if err != nil {
		return nil, nil, err
	}

	estimator, err := risk.NewEstimator(&job.Risk, logger)
	if err != nil {
		return nil, nil, err
	}
	assessment, err := estimator.Estimate(res.Output)
	if err != nil {
		return nil, nil, err
	}
	return res, export.NewReport(res, privacyCfg.Models, assessment.Summary()), nil
}

func openSinks(ctx context.Context, job *config.JobConfig, logger *logrus.Logger) ([]interfaces.ResultSink, error) {
	var pending []interfaces.ResultSink
	if job.Output.Path != "" {
		fs, err := file.NewSink(&file.SinkConfig{
			Path:       job.Output.Path,
			ReportPath: job.Output.ReportPath,
			Options:    job.ExportOptions(),
		}, export.NewExportEngine(logger), logger)
		if err != nil {
			return nil, err
		}
		pending = append(pending, fs)
	}
	if job.S3.Enabled {
		cfg := job.S3.Config
		cfg.Options = job.ExportOptions()
		ss, err := s3.NewSink(&cfg, logger)
		if err != nil {
			return nil, err
		}
		pending = append(pending, ss)
	}
	if job.Postgres.Enabled {
		cfg := job.Postgres.Config
		ps, err := postgres.NewSink(&cfg, logger)
		if err != nil {
			return nil, err
		}
		pending = append(pending, ps)
	}
	return connectSinks(ctx, pending, logger)
}

type connector interface {
	Connect(ctx context.Context) error
}

// connectSinks connects every sink that needs a connection, in order. When
// one fails, the sinks connected before it are closed.
func connectSinks(ctx context.Context, pending []interfaces.ResultSink, logger *logrus.Logger) ([]interfaces.ResultSink, error) {
	opened := make([]interfaces.ResultSink, 0, len(pending))
	for _, sink := range pending {
		if c, ok := sink.(connector); ok {
			if err := c.Connect(ctx); err != nil {
				closeSinks(opened, logger)
				return nil, err
			}
		}
		opened = append(opened, sink)
	}
	return opened, nil
}

func closeSinks(sinks []interfaces.ResultSink, logger *logrus.Logger) {
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			logger.WithError(err).WithField("sink", sink.Name()).Warn("Failed to close sink")
		}
	}
}

func writeRelease(ctx context.Context, sink interfaces.ResultSink, release *interfaces.Release, m *metrics.Metrics) error {
	start := time.Now()
	err := sink.Write(ctx, release)
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RecordStorageOperation(sink.Name(), "write", status, time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to write release to %s: %w", sink.Name(), err)
	}
	return nil
}

func pushMetrics(ctx context.Context, m *metrics.Metrics, logger *logrus.Logger) {
	if err := m.Push(ctx); err != nil {
		logger.WithError(err).Warn("Failed to push metrics")
	}
}
