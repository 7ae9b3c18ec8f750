package output

import (
	"fmt"

	"github.com/jamesainslie/romsort/pkg/romsort/placement"
)

// Message returns the one-line human description of a reported file.
func Message(f FileLine) string {
	switch f.Kind {
	case placement.Moved:
		return fmt.Sprintf("Moved: %s -> %s", f.Path, f.Dest)
	case placement.SizeMismatch:
		return "Size mismatch: " + f.Path
	case placement.CRCMismatch:
		return "CRC mismatch: " + f.Path
	case placement.Unmatched:
		return "Unmatched: " + f.Path
	case placement.MoveFailed:
		return fmt.Sprintf("Could not move %s: %s", f.Path, f.Error)
	case placement.ReadFailed:
		return fmt.Sprintf("Could not read %s: %s", f.Path, f.Error)
	case placement.InPlace:
		return "Already in place: " + f.Path
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Path)
	}
}

type count struct {
	label string
	n     int
	kind  placement.Kind
}

// summaryCounts lists the non-zero counters of a run in display order.
func summaryCounts(r *Result) []count {
	all := []count{
		{"moved", r.Stats.Moved, placement.Moved},
		{"in place", r.Stats.InPlace, placement.InPlace},
		{"size mismatch", r.Stats.SizeMismatch, placement.SizeMismatch},
		{"crc mismatch", r.Stats.CRCMismatch, placement.CRCMismatch},
		{"unmatched", r.Stats.Unmatched, placement.Unmatched},
		{"move failed", r.Stats.MoveFailed, placement.MoveFailed},
		{"read failed", r.Stats.ReadFailed, placement.ReadFailed},
	}
	out := all[:0]
	for _, c := range all {
		if c.n > 0 {
			out = append(out, c)
		}
	}
	return out
}
