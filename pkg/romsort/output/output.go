// Package output renders organize results for people and for scripts
// (pretty, plain, json, yaml).
//
// The package uses a registry pattern so formatters can be selected at
// runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, output.FromReport(report, info)); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/romsort/pkg/romsort/organize"
	"github.com/jamesainslie/romsort/pkg/romsort/placement"
)

// FileLine is one reported file, flattened for display.
type FileLine struct {
	Kind      placement.Kind `json:"kind" yaml:"kind"`
	Path      string         `json:"path" yaml:"path"`
	Dest      string         `json:"dest,omitempty" yaml:"dest,omitempty"`
	Name      string         `json:"name,omitempty" yaml:"name,omitempty"`
	Region    string         `json:"region,omitempty" yaml:"region,omitempty"`
	Size      int64          `json:"size" yaml:"size"`
	SizeHuman string         `json:"size_human" yaml:"size_human"`
	Error     string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result contains the complete output data for one organize run.
type Result struct {
	Root     string `json:"root" yaml:"root"`
	DAT      string `json:"dat" yaml:"dat"`
	Catalog  string `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Twilight bool   `json:"twilight" yaml:"twilight"`
	DryRun   bool   `json:"dry_run" yaml:"dry_run"`

	// Files lists every reported outcome in placement order.
	Files []FileLine `json:"files" yaml:"files"`

	Stats   organize.Stats `json:"stats" yaml:"stats"`
	Elapsed time.Duration  `json:"-" yaml:"-"`

	// HistoryID is the manifest entry written for the run, if any.
	HistoryID string `json:"history_id,omitempty" yaml:"history_id,omitempty"`

	// Interrupted is set when the run was cancelled.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`

	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// MovedBytes returns the total size of moved files.
func (r *Result) MovedBytes() int64 {
	var total int64
	for _, f := range r.Files {
		if f.Kind == placement.Moved {
			total += f.Size
		}
	}
	return total
}

// RunInfo carries the run parameters a Report does not know.
type RunInfo struct {
	DAT       string
	Catalog   string
	HistoryID string
}

// NewFileLine flattens an outcome.
func NewFileLine(o organize.Outcome) FileLine {
	line := FileLine{
		Kind:      o.Kind,
		Path:      o.Path,
		Dest:      o.Dest,
		Size:      o.Size,
		SizeHuman: humanize.IBytes(uint64(o.Size)),
	}
	if o.Entry != nil {
		line.Name = o.Entry.Name
		line.Region = o.Entry.Region
	}
	if o.Err != nil {
		line.Error = o.Err.Error()
	}
	return line
}

// FromReport builds a Result from an organize report.
func FromReport(report *organize.Report, info RunInfo) *Result {
	r := &Result{
		Root:      report.Root,
		DAT:       info.DAT,
		Catalog:   info.Catalog,
		Twilight:  report.Twilight,
		DryRun:    report.DryRun,
		Files:     make([]FileLine, 0, len(report.Outcomes)),
		Stats:     report.Stats,
		Elapsed:   report.Elapsed,
		HistoryID: info.HistoryID,
	}
	for _, o := range report.Outcomes {
		r.Files = append(r.Files, NewFileLine(o))
	}
	for _, we := range report.WalkErrors {
		r.Warnings = append(r.Warnings, fmt.Sprintf("could not read %s: %v", we.Path, we.Err))
	}
	return r
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the complete result.
	Format(w *bytes.Buffer, r *Result) error
}

// LiveFormatter is a Formatter that can also print outcomes as they happen
// and finish with a summary.
type LiveFormatter interface {
	Formatter

	// Line writes a single outcome.
	Line(w *bytes.Buffer, f FileLine)

	// Summary writes the closing summary of a run whose lines were
	// already written.
	Summary(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory, replacing any with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
