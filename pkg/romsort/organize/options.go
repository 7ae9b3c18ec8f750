package organize

import (
	"runtime"

	"github.com/jamesainslie/romsort/pkg/romsort/digest"
	"github.com/jamesainslie/romsort/pkg/romsort/relocate"
)

// Options configures an Engine.
type Options struct {
	// Workers is the number of files digested concurrently.
	Workers int

	// Exclude contains glob patterns for paths to skip while walking.
	// Patterns match the base name, the full path, or a directory prefix.
	Exclude []string

	// Digester computes checksums. Defaults to digest.FileDigester.
	Digester digest.Digester

	// Mover relocates accepted files. Defaults to relocate.Move, or
	// relocate.DryRun when DryRun is set.
	Mover relocate.MoveFunc

	// DryRun plans every move without performing it.
	DryRun bool

	// OnOutcome is called for every reported outcome, in placement order.
	// It is called from the goroutine running Run.
	OnOutcome func(Outcome)
}

// DefaultWorkers is the digest pool size used when Options.Workers is unset.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	return n
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Workers:  DefaultWorkers(),
		Digester: digest.FileDigester{},
	}
}

func (o *Options) applyDefaults() {
	if o.Workers < 1 {
		o.Workers = DefaultWorkers()
	}
	if o.Digester == nil {
		o.Digester = digest.FileDigester{}
	}
	if o.Mover == nil {
		if o.DryRun {
			o.Mover = relocate.DryRun
		} else {
			o.Mover = relocate.Move
		}
	}
}
