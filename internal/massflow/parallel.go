package massflow

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"sanigraph/internal/tech"
)

// SummarizeAllInto runs SummarizeInto over many systems concurrently.
//
// Every system draws from its own independent random stream;
// Options.Rand is ignored here because a shared generator would make
// the per-system results depend on scheduling. A failing system does
// not stop the others: its error lands in the returned slice, indexed
// like systems, with nil entries for successes. The error return is
// reserved for context cancellation.
func SummarizeAllInto(ctx context.Context, systems []*tech.System, inputs Inputs, opts Options) ([]error, error) {
	errs := make([]error, len(systems))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, sys := range systems {
		i, sys := i, sys
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o := opts
			o.Rand = NewRand()
			errs[i] = SummarizeInto(sys, inputs, o)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errs, err
	}
	return errs, nil
}
