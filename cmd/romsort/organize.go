package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jamesainslie/romsort/pkg/romsort/catalog"
	"github.com/jamesainslie/romsort/pkg/romsort/config"
	"github.com/jamesainslie/romsort/pkg/romsort/digest"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
	"github.com/jamesainslie/romsort/pkg/romsort/manifest"
	"github.com/jamesainslie/romsort/pkg/romsort/organize"
	"github.com/jamesainslie/romsort/pkg/romsort/output"
	"github.com/jamesainslie/romsort/pkg/romsort/runlock"
	"github.com/jamesainslie/romsort/pkg/romsort/watcher"
	"github.com/spf13/cobra"
)

var (
	errNoDAT      = errors.New("no catalog given: pass --dat or set dat in the config file")
	errDATNotFile = errors.New("catalog is not a regular file")
)

var organizeCmd = &cobra.Command{
	Use:   "organize [root]",
	Short: "Verify ROMs and move them into region folders",
	Long: `Walks root (default: current directory) for ROM images, identifies each one
by MD5 in the DAT catalog, checks its size and CRC32, and renames it to
<root>/<region>/<catalog name>. With --twilight each region is split into
Batch_1, Batch_2, ... folders of 200 files.

Files that do not match are reported and left where they are.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOrganize,
}

func init() {
	f := organizeCmd.Flags()
	f.String("dat", "", "DAT catalog to verify against")
	f.BoolP("twilight", "t", false, "split regions into Batch_N folders of 200 files")
	f.BoolP("dry-run", "d", false, "report planned moves without moving anything")
	f.IntP("workers", "w", 0, "files digested in parallel (0=auto)")
	f.StringSliceP("exclude", "e", nil, "exclude patterns (can be specified multiple times)")
	f.StringP("output", "o", "", "output format: pretty, plain, json, yaml")
	f.Bool("watch", false, "keep running and organize new files as they arrive")
	f.Bool("no-cache", false, "bypass the digest cache")
	f.Bool("no-history", false, "do not record the run in history")

	rootCmd.AddCommand(organizeCmd)
}

// organizeJob is everything one organize invocation needs.
type organizeJob struct {
	Root     string
	DAT      string
	Twilight bool
	DryRun   bool
	Watch    bool
	Workers  int
	Exclude  []string
	Output   string
	Quiet    bool

	// Empty paths disable the digest cache and history.
	CachePath   string
	HistoryPath string
	LockDir     string
}

func runOrganize(cmd *cobra.Command, args []string) error {
	cfg := appConfig

	job := organizeJob{
		Root:     ".",
		DAT:      cfg.DAT,
		Twilight: cfg.Twilight,
		DryRun:   cfg.DryRun,
		Workers:  cfg.Workers,
		Exclude:  cfg.Exclude,
		Output:   cfg.Output,
		Quiet:    getQuiet(),
		LockDir:  runlock.DefaultDir(),
	}
	if len(args) > 0 {
		job.Root = args[0]
	}

	job.Watch, _ = cmd.Flags().GetBool("watch")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.Cache.Enabled && !noCache {
		job.CachePath = cfg.Cache.Path
	}
	if cfg.History.Enabled && !noHistory {
		job.HistoryPath = cfg.History.Path
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return organizeTree(ctx, os.Stdout, job)
}

// checkPreconditions validates root and the catalog path before any work
// and returns the absolute root.
func checkPreconditions(root, dat string) (string, error) {
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}
	absRoot, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", absRoot)
		}
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", organize.ErrRootNotDir, absRoot)
	}

	if dat == "" {
		return "", errNoDAT
	}
	info, err = os.Stat(dat)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("catalog does not exist: %s", dat)
		}
		return "", fmt.Errorf("cannot access catalog: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", errDATNotFile, dat)
	}

	return absRoot, nil
}

// organizeTree runs one organize pass over job.Root, then keeps watching
// when job.Watch is set.
func organizeTree(ctx context.Context, w io.Writer, job organizeJob) error {
	root, err := checkPreconditions(job.Root, job.DAT)
	if err != nil {
		return err
	}

	formatter, err := output.Get(job.Output)
	if err != nil {
		return err
	}

	idx, err := catalog.Build(job.DAT)
	if err != nil {
		return err
	}
	printVerbose("Catalog %q: %d entries from %d games (%d skipped)",
		idx.Header().Name, idx.Len(), idx.Games(), idx.Skipped())

	lock, err := runlock.AcquireIn(job.LockDir, root)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	digester, closeCache := openDigester(job.CachePath)
	defer closeCache()

	s := &session{
		job:       job,
		root:      root,
		idx:       idx,
		out:       w,
		formatter: formatter,
		digester:  digester,
		log:       logging.Get("cli"),
	}
	if job.HistoryPath != "" {
		s.history, err = manifest.New(job.HistoryPath)
		if err != nil {
			s.log.Warn("history disabled", "path", job.HistoryPath, "error", err)
			s.history = nil
		}
	}

	err = s.run(ctx, false)
	if errors.Is(err, context.Canceled) {
		// The partial result has been printed and marked interrupted.
		return nil
	}
	if !job.Watch || (err != nil && !errors.Is(err, errRunFailed)) {
		return err
	}

	return s.watch(ctx)
}

// openDigester returns a cached digester when path is set and the cache
// opens, else a direct one.
func openDigester(path string) (digest.Digester, func()) {
	if path == "" {
		return digest.FileDigester{}, func() {}
	}

	cache, err := digest.OpenCache(path)
	if err != nil {
		// Another romsort process may hold the cache open.
		logging.Get("cli").Warn("digest cache unavailable", "path", path, "error", err)
		printVerbose("Digest cache unavailable: %v", err)
		return digest.FileDigester{}, func() {}
	}
	return digest.NewCachedDigester(cache, nil), func() { _ = cache.Close() }
}

// session holds the state shared by the runs of one invocation.
type session struct {
	job       organizeJob
	root      string
	idx       *catalog.Index
	out       io.Writer
	formatter output.Formatter
	digester  digest.Digester
	history   *manifest.Manifest
	log       *logging.Logger
}

// run performs one organize pass and renders it. When skipIdle is set a
// pass that reports nothing prints nothing and is not recorded.
func (s *session) run(ctx context.Context, skipIdle bool) error {
	info := output.RunInfo{DAT: s.job.DAT, Catalog: s.idx.Header().Name}
	live, isLive := s.formatter.(output.LiveFormatter)

	headerDone := false
	header := func() {
		if headerDone || s.job.Quiet {
			return
		}
		headerDone = true
		if h, ok := s.formatter.(interface{ Header(*output.Result) string }); ok {
			fmt.Fprintln(s.out, h.Header(&output.Result{
				Root:     s.root,
				DAT:      info.DAT,
				Catalog:  info.Catalog,
				Twilight: s.job.Twilight,
				DryRun:   s.job.DryRun,
			}))
		}
	}

	opts := organize.Options{
		Workers:  s.job.Workers,
		Exclude:  s.job.Exclude,
		Digester: s.digester,
		DryRun:   s.job.DryRun,
	}
	if isLive && !s.job.Quiet {
		opts.OnOutcome = func(o organize.Outcome) {
			header()
			var buf bytes.Buffer
			live.Line(&buf, output.NewFileLine(o))
			_, _ = s.out.Write(buf.Bytes())
		}
	}

	report, err := organize.New(opts).Run(ctx, s.root, s.idx, s.job.Twilight)
	interrupted := ctx.Err() != nil
	if err != nil && !interrupted {
		return err
	}
	if report == nil {
		return err
	}
	if skipIdle && len(report.Outcomes) == 0 && len(report.WalkErrors) == 0 {
		s.log.Debug("idle pass", "root", s.root, "in_place", report.Stats.InPlace)
		return err
	}

	var warnings []string
	if s.history != nil {
		entry, herr := s.history.Record(report, manifest.RunInfo{DAT: info.DAT, Catalog: info.Catalog})
		if herr != nil {
			s.log.Warn("failed to record history", "error", herr)
			warnings = append(warnings, fmt.Sprintf("history not recorded: %v", herr))
		} else {
			info.HistoryID = entry.ID
		}
	}

	if cd, ok := s.digester.(*digest.CachedDigester); ok {
		hits, misses := cd.Stats()
		printVerbose("Digest cache: %d hits, %d misses", hits, misses)
	}

	result := output.FromReport(report, info)
	result.Interrupted = interrupted
	result.Warnings = append(result.Warnings, warnings...)

	var buf bytes.Buffer
	if isLive {
		header()
		if ferr := live.Summary(&buf, result); ferr != nil {
			return ferr
		}
	} else if ferr := s.formatter.Format(&buf, result); ferr != nil {
		return ferr
	}
	if _, werr := s.out.Write(buf.Bytes()); werr != nil {
		return werr
	}

	if interrupted {
		return err
	}
	if !report.Succeeded() {
		return errRunFailed
	}
	return nil
}

// watch re-runs the organize pass whenever new ROMs settle in the tree.
// It returns nil when ctx is cancelled.
func (s *session) watch(ctx context.Context) error {
	w, err := watcher.New(s.root, watcher.Options{Exclude: s.job.Exclude})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.root, err)
	}
	defer w.Close()

	if !s.job.Quiet {
		fmt.Fprintf(os.Stderr, "Watching %s for new ROMs (Ctrl+C to stop)\n", s.root)
	}
	s.log.Info("watching", "root", s.root, "directories", w.Watched())

	err = w.Run(ctx, func(ctx context.Context) {
		if err := s.run(ctx, true); err != nil && !errors.Is(err, errRunFailed) && ctx.Err() == nil {
			s.log.Error("organize pass failed", "root", s.root, "error", err)
			printError("%v", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
