package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/inferloop/tabanon/cmd/cli/config"
	"github.com/inferloop/tabanon/internal/anonymizer"
	"github.com/inferloop/tabanon/internal/storage/file"
)

type LatticeOptions struct {
	ConfigFile string
	Verbose    bool
}

func NewLatticeCmd() *cobra.Command {
	opts := &LatticeOptions{}

	cmd := &cobra.Command{
		Use:   "lattice",
		Short: "Show the generalization lattice of a job",
		Long: `Load the input and hierarchies of a job and print the hierarchy height of
every quasi-identifier and the number of nodes in the lattice.`,
		Example: `  tabanon lattice --config job.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Verbose, _ = cmd.Flags().GetBool("verbose")
			if opts.ConfigFile == "" {
				opts.ConfigFile, _ = cmd.Flags().GetString("config")
			}
			return runLattice(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	return cmd
}

func runLattice(ctx context.Context, opts *LatticeOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	job, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}
	logger, err := job.NewLogger(opts.Verbose)
	if err != nil {
		return err
	}

	reader, err := file.NewReader(&job.Input, logger)
	if err != nil {
		return err
	}
	ds, err := reader.Read(ctx, job.Schema())
	if err != nil {
		return err
	}
	idx, err := job.BuildIndex(ds)
	if err != nil {
		return err
	}
	lat, err := anonymizer.NewLattice(ds, idx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, " - Records: %d\n", ds.Size())
	fmt.Fprintln(out, " - Quasi-identifiers:")
	for i, attr := range lat.Attributes() {
		h, _ := idx.Hierarchy(attr)
		fmt.Fprintf(out, "   * %s: height %d, %d distinct values\n", attr, lat.Heights()[i], len(h.Domain()))
	}
	fmt.Fprintf(out, " - Lattice: %d nodes, bottom %s, top %s\n", lat.Size(), lat.Bottom(), lat.Top())
	return nil
}
