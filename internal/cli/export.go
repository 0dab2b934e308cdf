package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sanigraph/internal/export"
	"sanigraph/internal/store"
	"sanigraph/internal/tech"
)

// ExportOptions holds flags shared by the export subcommands.
type ExportOptions struct {
	*RootOptions
	Database string
	In       string
	ID       string
	Out      string
}

// ExportReport is the success payload of an export subcommand.
type ExportReport struct {
	Format  string `json:"format"`
	Systems int    `json:"systems"`
	Output  string `json:"output"`
}

// NewExportCommand creates the export command group.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render stored systems as DOT or CSV",
		Long: `Render synthesized systems from a database or NDJSON stream.

export dot writes one system as a Graphviz digraph; export csv writes
the mass-flow summary statistics of simulated systems as a flat table.`,
	}

	cmd.AddCommand(newExportDotCommand(rootOpts))
	cmd.AddCommand(newExportCSVCommand(rootOpts))

	return cmd
}

func newExportDotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Render one system as a Graphviz digraph",
		Long: `Render one system as a Graphviz digraph.

Reads systems from --db or --in. --id selects the system; it may be
omitted when the source holds exactly one.

Example:
  sanigraph export dot --db results.db --id 0190b5ba-... | dot -Tsvg -o system.svg`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportDot(opts, cmd)
		},
	}

	addExportFlags(cmd, opts)
	return cmd
}

func newExportCSVCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Render mass-flow summaries as a CSV table",
		Long: `Render the mass-flow summary statistics of simulated systems as CSV.

Reads systems from --db or --in and writes one row per system,
category, substance, pathway and statistic. Systems without a summary
are skipped; with --id the selected system must carry one.

Example:
  sanigraph export csv --db results.db --out summary.csv`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExportCSV(opts, cmd)
		},
	}

	addExportFlags(cmd, opts)
	return cmd
}

func addExportFlags(cmd *cobra.Command, opts *ExportOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "read systems from this SQLite database")
	cmd.Flags().StringVar(&opts.In, "in", "", "read systems from this NDJSON file")
	cmd.Flags().StringVar(&opts.ID, "id", "", "system ID to export")
	cmd.Flags().StringVar(&opts.Out, "out", "-", "output file (- for stdout)")
}

func runExportDot(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := exportFormatter(opts, cmd)

	systems, err := loadExportSystems(opts, cmd)
	if err != nil {
		return err
	}
	sys, err := selectSystem(systems, opts.ID)
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(opts.Out, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open output file", err)
	}
	defer closeOut()

	if err := export.WriteDOT(w, sys); err != nil {
		return WrapExitError(ExitCommandError, "failed to write DOT", err)
	}

	if opts.Out == "-" {
		return nil
	}
	return outputExportReport(formatter, ExportReport{Format: "dot", Systems: 1, Output: opts.Out})
}

func runExportCSV(opts *ExportOptions, cmd *cobra.Command) error {
	formatter := exportFormatter(opts, cmd)

	systems, err := loadExportSystems(opts, cmd)
	if err != nil {
		return err
	}

	var summarized []*tech.System
	if opts.ID != "" {
		sys, err := selectSystem(systems, opts.ID)
		if err != nil {
			return err
		}
		if sys.Result == nil {
			return NewExitError(ExitCommandError, fmt.Sprintf("system %q has no mass-flow summary", opts.ID))
		}
		summarized = []*tech.System{sys}
	} else {
		for _, sys := range systems {
			if sys.Result != nil {
				summarized = append(summarized, sys)
			}
		}
		if len(summarized) == 0 {
			return NewExitError(ExitCommandError, "no mass-flow summaries to export; run simulate first")
		}
	}

	w, closeOut, err := openOutput(opts.Out, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open output file", err)
	}
	defer closeOut()

	if err := export.WriteSummaryCSV(w, summarized); err != nil {
		return WrapExitError(ExitCommandError, "failed to write CSV", err)
	}

	if opts.Out == "-" {
		return nil
	}
	return outputExportReport(formatter, ExportReport{Format: "csv", Systems: len(summarized), Output: opts.Out})
}

func outputExportReport(formatter *OutputFormatter, report ExportReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}
	fmt.Fprintf(formatter.Writer, "✓ wrote %s for %d system(s) to %s\n", report.Format, report.Systems, report.Output)
	return nil
}

func exportFormatter(opts *ExportOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadExportSystems reads the systems named by --db or --in; exactly
// one of the two must be set.
func loadExportSystems(opts *ExportOptions, cmd *cobra.Command) ([]*tech.System, error) {
	if (opts.Database == "") == (opts.In == "") {
		return nil, NewExitError(ExitCommandError, "exactly one of --db and --in is required")
	}

	if opts.In != "" {
		systems, err := readSystemsNDJSON(opts.In)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read systems", err)
		}
		return systems, nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	systems, err := st.ReadAllSystems(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read systems", err)
	}
	return systems, nil
}

// selectSystem resolves --id against the loaded systems; with no ID,
// a single loaded system is unambiguous.
func selectSystem(systems []*tech.System, id string) (*tech.System, error) {
	if id == "" {
		switch len(systems) {
		case 0:
			return nil, NewExitError(ExitCommandError, "no systems to export")
		case 1:
			return systems[0], nil
		default:
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%d systems available; select one with --id", len(systems)))
		}
	}
	for _, sys := range systems {
		if sys.ID == id {
			return sys, nil
		}
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("system %q not found", id))
}
