// Package manifest keeps a JSON history of organize runs, one file per run.
package manifest

import (
	"time"

	"github.com/jamesainslie/romsort/pkg/romsort/organize"
	"github.com/jamesainslie/romsort/pkg/romsort/placement"
)

// Entry is the persisted record of one organize run.
type Entry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Root      string         `json:"root"`
	DAT       string         `json:"dat"`
	Catalog   string         `json:"catalog,omitempty"`
	Twilight  bool           `json:"twilight"`
	DryRun    bool           `json:"dry_run"`
	Elapsed   time.Duration  `json:"elapsed"`
	Files     []FileRecord   `json:"files"`
	Summary   organize.Stats `json:"summary"`
}

// FileRecord is one reported outcome.
type FileRecord struct {
	Kind   placement.Kind `json:"kind"`
	Path   string         `json:"path"`
	Dest   string         `json:"dest,omitempty"`
	Size   int64          `json:"size"`
	Name   string         `json:"name,omitempty"`
	Region string         `json:"region,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// RunInfo describes what a run was asked to do.
type RunInfo struct {
	DAT     string
	Catalog string
}

// Records converts outcomes into file records.
func Records(outcomes []organize.Outcome) []FileRecord {
	records := make([]FileRecord, 0, len(outcomes))
	for _, o := range outcomes {
		r := FileRecord{Kind: o.Kind, Path: o.Path, Dest: o.Dest, Size: o.Size}
		if o.Entry != nil {
			r.Name = o.Entry.Name
			r.Region = o.Entry.Region
		}
		if o.Err != nil {
			r.Error = o.Err.Error()
		}
		records = append(records, r)
	}
	return records
}
