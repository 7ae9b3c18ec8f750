package organize

import (
	"time"

	"github.com/jamesainslie/romsort/pkg/romsort/placement"
)

// Stats counts the outcomes of a run.
type Stats struct {
	Candidates   int `json:"candidates" yaml:"candidates"`
	Moved        int `json:"moved" yaml:"moved"`
	InPlace      int `json:"in_place" yaml:"in_place"`
	SizeMismatch int `json:"size_mismatch" yaml:"size_mismatch"`
	CRCMismatch  int `json:"crc_mismatch" yaml:"crc_mismatch"`
	Unmatched    int `json:"unmatched" yaml:"unmatched"`
	MoveFailed   int `json:"move_failed" yaml:"move_failed"`
	ReadFailed   int `json:"read_failed" yaml:"read_failed"`
}

// Rejected returns the number of files that did not match the catalog.
func (s Stats) Rejected() int {
	return s.SizeMismatch + s.CRCMismatch + s.Unmatched
}

// Failed returns the number of files that could not be read or moved.
func (s Stats) Failed() int {
	return s.MoveFailed + s.ReadFailed
}

func (s *Stats) add(k placement.Kind) {
	switch k {
	case placement.Moved:
		s.Moved++
	case placement.InPlace:
		s.InPlace++
	case placement.SizeMismatch:
		s.SizeMismatch++
	case placement.CRCMismatch:
		s.CRCMismatch++
	case placement.Unmatched:
		s.Unmatched++
	case placement.MoveFailed:
		s.MoveFailed++
	case placement.ReadFailed:
		s.ReadFailed++
	}
}

// Report is the result of one Run.
type Report struct {
	Root     string
	Twilight bool
	DryRun   bool
	Started  time.Time
	Elapsed  time.Duration

	// Outcomes lists every reported outcome in placement order.
	// Files already in place are counted in Stats but not listed.
	Outcomes []Outcome

	Stats Stats

	// Regions holds the final batch counters of every region touched.
	Regions map[string]placement.RegionState

	WalkErrors []WalkError
}

func (r *Report) record(out Outcome) {
	r.Stats.add(out.Kind)
	if out.Kind != placement.InPlace {
		r.Outcomes = append(r.Outcomes, out)
	}
}

// Succeeded reports whether the run finished without read or move failures.
func (r *Report) Succeeded() bool {
	return r.Stats.Failed() == 0
}
