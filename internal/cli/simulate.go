package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sanigraph/internal/export"
	"sanigraph/internal/library"
	"sanigraph/internal/massflow"
	"sanigraph/internal/store"
	"sanigraph/internal/synth"
	"sanigraph/internal/tech"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Source           string
	Masses           string
	Runs             int
	MonteCarlo       bool
	ReliabilityScale float64
	Scale            float64
	Parallel         bool
	Database         string
	Max              int

	// IDGenerator overrides the system ID generator (for testing).
	IDGenerator synth.IDGenerator
}

// SimulationFailure records one system whose simulation failed.
type SimulationFailure struct {
	System string `json:"system"`
	Error  string `json:"error"`
}

// SimulationReport is the payload of the simulate command.
type SimulationReport struct {
	Library    string              `json:"library"`
	Source     string              `json:"source"`
	Systems    int                 `json:"systems"`
	Simulated  int                 `json:"simulated"`
	Failed     int                 `json:"failed,omitempty"`
	Runs       int                 `json:"runs"`
	MonteCarlo bool                `json:"monte_carlo"`
	Failures   []SimulationFailure `json:"failures,omitempty"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <library>",
		Short: "Synthesize systems and summarize their mass flows",
		Long: `Synthesize every system from a source and simulate its mass flows.

Input masses come from a YAML file mapping source technology names to
per-substance masses. Each synthesized system is summarized over -n
runs into entered/recovered/lost statistics; --montecarlo samples the
transfer fractions instead of using nominal values. One system failing
to simulate does not stop the others.

Example:
  sanigraph simulate catalog.json --source Household --masses loads.yaml
  sanigraph simulate catalog.json --source Household --masses loads.yaml \
    -n 500 --montecarlo --parallel --db results.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "source technology to start from (required)")
	cmd.Flags().StringVar(&opts.Masses, "masses", "", "YAML file of input masses per source (required)")
	cmd.Flags().IntVarP(&opts.Runs, "runs", "n", 1, "number of runs per system")
	cmd.Flags().BoolVar(&opts.MonteCarlo, "montecarlo", false, "sample transfer fractions instead of nominal values")
	cmd.Flags().Float64Var(&opts.ReliabilityScale, "reliability-scale", 1, "sharpen (>1) or widen (<1) Monte Carlo sampling")
	cmd.Flags().Float64Var(&opts.Scale, "scale", 1, "multiply every summary statistic by this factor")
	cmd.Flags().BoolVar(&opts.Parallel, "parallel", false, "summarize systems concurrently")
	cmd.Flags().StringVar(&opts.Database, "db", "", "persist systems and summaries to this SQLite database")
	cmd.Flags().IntVar(&opts.Max, "max", synth.DefaultMaxSystems, "abort synthesis after this many systems")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("masses")

	return cmd
}

func runSimulate(opts *SimulateOptions, libraryPath string, cmd *cobra.Command) error {
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
	src, err := findSource(lib, opts.Source)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --source", err)
	}
	inputs, err := library.LoadInputMasses(opts.Masses)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load input masses", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	engineOpts := []synth.Option{
		synth.WithMaxSystems(opts.Max),
		synth.WithDiagnosticSink(export.NewDiagnosticWriter(cmd.ErrOrStderr())),
	}
	if opts.IDGenerator != nil {
		engineOpts = append(engineOpts, synth.WithIDGenerator(opts.IDGenerator))
	}
	engine := synth.New(lib.Technologies, engineOpts...)

	systems, err := engine.Enumerate(ctx, src)
	if err != nil {
		return WrapExitError(ExitFailure, "synthesis aborted", err)
	}
	slog.Info("synthesis complete", "source", src.Name, "systems", len(systems))

	mfOpts := massflow.Options{
		MonteCarlo:       opts.MonteCarlo,
		ReliabilityScale: opts.ReliabilityScale,
		N:                opts.Runs,
	}

	failures, err := summarize(ctx, systems, inputs, mfOpts, opts.Parallel)
	if err != nil {
		return WrapExitError(ExitFailure, "simulation aborted", err)
	}

	if opts.Scale != 1 {
		for _, sys := range systems {
			if sys.Result == nil {
				continue // simulation already failed; reported above
			}
			if err := massflow.ScaleInto(sys, opts.Scale); err != nil {
				failures[sys] = err
			}
		}
	}

	if opts.Database != "" {
		if err := persistSummaries(ctx, opts.Database, systems, failures); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist results", err)
		}
	}

	report := &SimulationReport{
		Library:    libraryPath,
		Source:     src.Name,
		Systems:    len(systems),
		Simulated:  len(systems) - len(failures),
		Failed:     len(failures),
		Runs:       mfOpts.N,
		MonteCarlo: mfOpts.MonteCarlo,
	}
	for _, sys := range systems {
		if err, ok := failures[sys]; ok {
			report.Failures = append(report.Failures, SimulationFailure{System: sys.ID, Error: err.Error()})
		}
	}

	return outputSimulationReport(formatter, report)
}

// summarize runs the in-place summary over every system, sequentially
// or concurrently, and returns the per-system failures. The error
// return is reserved for context cancellation.
func summarize(ctx context.Context, systems []*tech.System, inputs massflow.Inputs, opts massflow.Options, parallel bool) (map[*tech.System]error, error) {
	failures := make(map[*tech.System]error)

	if parallel {
		errs, err := massflow.SummarizeAllInto(ctx, systems, inputs, opts)
		for i, sysErr := range errs {
			if sysErr != nil {
				failures[systems[i]] = sysErr
			}
		}
		return failures, err
	}

	for _, sys := range systems {
		if err := ctx.Err(); err != nil {
			return failures, err
		}
		if err := massflow.SummarizeInto(sys, inputs, opts); err != nil {
			failures[sys] = err
		}
	}
	return failures, nil
}

// persistSummaries writes every successfully simulated system and its
// summary to the database.
func persistSummaries(ctx context.Context, path string, systems []*tech.System, failures map[*tech.System]error) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	stored := 0
	for _, sys := range systems {
		if _, failed := failures[sys]; failed {
			continue
		}
		storedID, _, err := st.WriteSystem(ctx, sys)
		if err != nil {
			return err
		}
		if err := st.WriteSummary(ctx, storedID, sys.Result); err != nil {
			return err
		}
		stored++
	}
	slog.Info("summaries persisted", "path", path, "systems", stored)
	return nil
}

func outputSimulationReport(formatter *OutputFormatter, report *SimulationReport) error {
	if report.Failed == 0 {
		if formatter.Format == "json" {
			return formatter.Success(report)
		}
		mode := "deterministic"
		if report.MonteCarlo {
			mode = "monte carlo"
		}
		fmt.Fprintf(formatter.Writer, "✓ %d system(s) simulated (%d run(s), %s)\n", report.Simulated, report.Runs, mode)
		return nil
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   report,
			Error: &CLIError{
				Code:    "E001",
				Message: fmt.Sprintf("%d of %d system(s) failed to simulate", report.Failed, report.Systems),
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d system(s) failed to simulate", report.Failed, report.Systems))
	}

	fmt.Fprintf(formatter.Writer, "✗ %d of %d system(s) failed to simulate\n", report.Failed, report.Systems)
	fmt.Fprintln(formatter.Writer)
	for _, f := range report.Failures {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", f.System, f.Error)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d system(s) failed to simulate", report.Failed, report.Systems))
}
