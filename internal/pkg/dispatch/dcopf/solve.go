package dcopf

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/metrics"
	opt "github.com/ohowland/cgc_opf/internal/pkg/optimize"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
	"golang.org/x/sync/errgroup"
)

// Solve solves every island and extracts the results. When potential errors
// were found the solver is not called and the results are marked unsolved.
// Islands are solved by up to Options.Workers goroutines; they share only
// read-only state.
func (b *Builder) Solve(ctx context.Context) error {
	if !b.loaded {
		return ErrBuildOrder
	}
	start := time.Now()
	mode := b.opts.Mode.String()

	if b.HasPotentialErrors() {
		log.Printf("[DCOPF] %s: solve skipped, %d potential errors", b.net.Name, len(b.potentialErrors))
		metrics.PotentialErrors.Add(float64(len(b.potentialErrors)))
		b.results = b.unsolved(opt.NotSolved, make([]opt.Solution, len(b.islands)))
		metrics.ObserveSolve(mode, "Skipped", time.Since(start))
		return nil
	}

	sols := make([]opt.Solution, len(b.islands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i := range b.problems {
		i := i
		g.Go(func() error {
			sol, err := b.solver.Solve(gctx, b.problems[i])
			sols[i] = sol
			if err != nil {
				return fmt.Errorf("island %d: %w", i, err)
			}
			return nil
		})
	}
	err := g.Wait()

	status := opt.Optimal
	for _, sol := range sols {
		if sol.Status != opt.Optimal {
			status = sol.Status
			break
		}
	}
	if err != nil && status == opt.Optimal {
		status = opt.Failed
	}

	if status == opt.Optimal {
		b.results = b.extract(sols)
	} else {
		b.results = b.unsolved(status, sols)
	}
	metrics.ObserveSolve(mode, status.String(), time.Since(start))
	log.Printf("[DCOPF] %s: t=%d status %s, objective %g, %v",
		b.net.Name, b.t, status, b.results.Objective, time.Since(start))

	return err
}

// Run solves the time steps in order and returns the result of each. A nil
// steps solves every profile index, or the scalar snapshot when the network
// carries no profile.
func (b *Builder) Run(ctx context.Context, steps []int) ([]Results, error) {
	if steps == nil {
		n := b.net.Steps()
		if n == 0 {
			steps = []int{powersystem.NoProfile}
		}
		for t := 0; t < n; t++ {
			steps = append(steps, t)
		}
	}

	var out []Results
	for _, t := range steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := b.SetLoads(t); err != nil {
			return out, err
		}
		if err := b.Solve(ctx); err != nil {
			return out, err
		}
		out = append(out, b.Results())
	}
	return out, nil
}

// WriteLP writes the linear program of island i in LP format.
func (b *Builder) WriteLP(w io.Writer, i int) error {
	p, err := b.Problem(i)
	if err != nil {
		return err
	}
	return opt.WriteLP(w, p)
}

// SaveLP writes one LP file per island into dir and returns their paths.
func (b *Builder) SaveLP(dir string) ([]string, error) {
	if !b.constrained {
		return nil, ErrBuildOrder
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for i := range b.problems {
		path := filepath.Join(dir, fmt.Sprintf("dcopf_island_%d.lp", i))
		f, err := os.Create(path)
		if err != nil {
			return paths, err
		}
		err = b.WriteLP(f, i)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	log.Printf("[DCOPF] %s: wrote %d LP files to %s", b.net.Name, len(paths), dir)
	return paths, nil
}

func newRunPID() uuid.UUID {
	pid, err := uuid.NewUUID()
	if err != nil {
		return uuid.New()
	}
	return pid
}
