// Package organize runs a full verify-and-organize pass over a ROM tree:
// it finds candidate files, digests them in parallel and places each one in
// path order through a placement.Planner.
package organize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/romsort/pkg/romsort/catalog"
	"github.com/jamesainslie/romsort/pkg/romsort/digest"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
	"github.com/jamesainslie/romsort/pkg/romsort/placement"
	"golang.org/x/sync/errgroup"
)

// ErrRootNotDir is returned when the root to organize is not a directory.
var ErrRootNotDir = errors.New("root is not a directory")

// Outcome is the result of processing one file.
type Outcome = placement.Outcome

// Kind classifies an Outcome.
type Kind = placement.Kind

// MoveTracker is implemented by digesters that key state by path and need
// to follow files as they are moved.
type MoveTracker interface {
	Moved(from, to string)
}

// Engine organizes ROM trees. An Engine may be reused for several runs but
// runs must not overlap.
type Engine struct {
	opts Options
	log  *logging.Logger
}

// New creates an Engine. Unset options take their defaults.
func New(opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		opts: opts,
		log:  logging.Get("organize"),
	}
}

// digested is a candidate's digest, filled in by the worker pool.
type digested struct {
	res   digest.Result
	err   error
	ready chan struct{}
}

// Run organizes every candidate below root against idx. Per-file problems
// are reported as outcomes; the returned error is reserved for an invalid
// root, a failed walk or cancellation. On cancellation the report covers
// the files placed so far.
func (e *Engine) Run(ctx context.Context, root string, idx *catalog.Index, twilight bool) (*Report, error) {
	start := time.Now()

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("checking root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotDir, root)
	}

	e.log.Info("run started", "root", root, "twilight", twilight, "dry_run", e.opts.DryRun, "workers", e.opts.Workers)

	report := &Report{
		Root:     root,
		Twilight: twilight,
		DryRun:   e.opts.DryRun,
		Started:  start,
	}

	candidates, walkErrs, err := e.collect(ctx, root)
	report.WalkErrors = walkErrs
	for _, we := range walkErrs {
		e.log.Warn("walk error", "path", we.Path, "error", we.Err)
	}
	if err != nil {
		report.Elapsed = time.Since(start)
		return report, fmt.Errorf("walking %s: %w", root, err)
	}
	report.Stats.Candidates = len(candidates)
	e.log.Debug("walk complete", "candidates", len(candidates))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]digested, len(candidates))
	for i := range results {
		results[i].ready = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(e.opts.Workers)
	go func() {
		for i, path := range candidates {
			if gctx.Err() != nil {
				close(results[i].ready)
				continue
			}
			g.Go(func() error {
				defer close(results[i].ready)
				if gctx.Err() != nil {
					return nil
				}
				results[i].res, results[i].err = e.opts.Digester.Digest(path)
				return nil
			})
		}
	}()

	planner := placement.New(idx, root, twilight)
	tracker, _ := e.opts.Digester.(MoveTracker)

	var runErr error
	for i, path := range candidates {
		select {
		case <-ctx.Done():
		case <-results[i].ready:
		}
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}

		out := e.place(planner, path, results[i])
		report.record(out)

		if out.Kind == placement.InPlace {
			continue
		}
		if out.Kind == placement.Moved && tracker != nil && !e.opts.DryRun {
			tracker.Moved(out.Path, out.Dest)
		}
		if e.opts.OnOutcome != nil {
			e.opts.OnOutcome(out)
		}
	}

	cancel()
	// Every ready channel is closed exactly once, by its worker or by the
	// spawner skipping it after cancellation.
	for i := range results {
		<-results[i].ready
	}
	_ = g.Wait()

	report.Regions = planner.Regions()
	report.Elapsed = time.Since(start)

	e.log.Info("run finished",
		"root", root,
		"moved", report.Stats.Moved,
		"in_place", report.Stats.InPlace,
		"rejected", report.Stats.Rejected(),
		"failed", report.Stats.Failed(),
		"elapsed", report.Elapsed,
	)

	return report, runErr
}

func (e *Engine) place(planner *placement.Planner, path string, d digested) Outcome {
	if d.err != nil {
		e.log.Debug("digest failed", "path", path, "error", d.err)
		return Outcome{Kind: placement.ReadFailed, Path: path, Err: d.err}
	}

	out := planner.Place(path, d.res, e.opts.Mover)
	switch out.Kind {
	case placement.MoveFailed:
		e.log.Warn("move failed", "path", path, "dest", out.Dest, "error", out.Err)
	case placement.Moved:
		e.log.Debug("moved", "from", out.Path, "to", out.Dest)
	}
	return out
}
