package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"sanigraph/internal/export"
	"sanigraph/internal/library"
	"sanigraph/internal/store"
	"sanigraph/internal/synth"
	"sanigraph/internal/tech"
)

// SynthesizeOptions holds flags for the synthesize command.
type SynthesizeOptions struct {
	*RootOptions
	Source   string
	Out      string
	Database string
	Max      int

	// IDGenerator overrides the system ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator synth.IDGenerator
}

// SourceSystems is the per-source slice of a synthesis report.
type SourceSystems struct {
	Source  string `json:"source"`
	Systems int    `json:"systems"`
}

// SynthesisReport is the success payload of the synthesize command.
type SynthesisReport struct {
	Library string          `json:"library"`
	Systems int             `json:"systems"`
	Sources []SourceSystems `json:"sources"`
}

// NewSynthesizeCommand creates the synthesize command.
func NewSynthesizeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SynthesizeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "synthesize <library>",
		Short: "Enumerate all complete systems from a library",
		Long: `Enumerate every complete sanitation system buildable from a library.

Starting at a source technology, the search attaches technologies whose
inputs are satisfied by currently open outputs until no candidate
remains, and emits each completed system. With --source the search
starts from that source only; otherwise every source in the library is
tried. Completed systems stream to the --out NDJSON file and/or the
--db SQLite database as they are found.

Example:
  sanigraph synthesize catalog.json --source Household --out systems.ndjson
  sanigraph synthesize catalog.json --db results.db --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynthesize(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "source technology to start from (default: every source)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "write completed systems as NDJSON to this file (- for stdout)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "persist completed systems to this SQLite database")
	cmd.Flags().IntVar(&opts.Max, "max", synth.DefaultMaxSystems, "abort after this many systems")

	return cmd
}

func runSynthesize(opts *SynthesizeOptions, libraryPath string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	lib, err := libraryForRun(libraryPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load library", err)
	}
	slog.Info("library loaded", "path", libraryPath, "technologies", lib.Len(), "sources", len(lib.Sources()))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var sinks []synth.ResultSink

	if opts.Out != "" {
		w, closeOut, err := openOutput(opts.Out, cmd)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open output file", err)
		}
		defer closeOut()
		sinks = append(sinks, export.NewSystemWriter(w))
	}

	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		sinks = append(sinks, st.Sink(ctx))
	}

	engineOpts := []synth.Option{
		synth.WithMaxSystems(opts.Max),
		synth.WithDiagnosticSink(export.NewDiagnosticWriter(cmd.ErrOrStderr())),
	}
	switch len(sinks) {
	case 0:
	case 1:
		engineOpts = append(engineOpts, synth.WithResultSink(sinks[0]))
	default:
		engineOpts = append(engineOpts, synth.WithResultSink(multiSink(sinks)))
	}
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, synth.WithIDGenerator(opts.IDGenerator))
	}

	engine := synth.New(lib.Technologies, engineOpts...)

	report, err := enumerate(ctx, engine, lib, opts.Source, libraryPath)
	if err != nil {
		return err
	}

	// When the NDJSON stream goes to stdout the stream is the output;
	// a trailing status line would corrupt it.
	if opts.Out == "-" {
		return nil
	}
	return outputSynthesisReport(formatter, report)
}

// enumerate runs the search from one named source, or from every
// source in the catalog when name is empty.
func enumerate(ctx context.Context, engine *synth.Engine, lib *library.Library, name, libraryPath string) (*SynthesisReport, error) {
	report := &SynthesisReport{Library: libraryPath}

	if name != "" {
		src, err := findSource(lib, name)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid --source", err)
		}
		systems, err := engine.Enumerate(ctx, src)
		if err != nil {
			return nil, WrapExitError(ExitFailure, "synthesis aborted", err)
		}
		report.Systems = len(systems)
		report.Sources = []SourceSystems{{Source: src.Name, Systems: len(systems)}}
		return report, nil
	}

	bySource, err := engine.EnumerateAll(ctx, lib.Sources())
	if err != nil {
		return nil, WrapExitError(ExitFailure, "synthesis aborted", err)
	}
	// Catalog order keeps the report deterministic.
	for _, src := range lib.Sources() {
		n := len(bySource[src.Name])
		report.Systems += n
		report.Sources = append(report.Sources, SourceSystems{Source: src.Name, Systems: n})
	}
	return report, nil
}

func outputSynthesisReport(formatter *OutputFormatter, report *SynthesisReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	fmt.Fprintf(formatter.Writer, "✓ %d system(s) synthesized\n", report.Systems)
	for _, s := range report.Sources {
		fmt.Fprintf(formatter.Writer, "  %s: %d\n", s.Source, s.Systems)
	}
	return nil
}

// openOutput resolves an --out flag; "-" is the command's stdout.
func openOutput(path string, cmd *cobra.Command) (io.Writer, func(), error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	closeOut := func() {
		if err := f.Close(); err != nil {
			slog.Error("error closing output file", "path", path, "error", err)
		}
	}
	return f, closeOut, nil
}

// multiSink fans each emitted system out to every sink. Every sink
// sees every system even when an earlier one fails; the first failure
// is reported to the engine.
type multiSink []synth.ResultSink

func (m multiSink) Emit(sys *tech.System) error {
	var firstErr error
	for _, s := range m {
		if err := s.Emit(sys); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
