package output

import (
	"fmt"
	"time"
)

// document is the shape shared by the json and yaml formatters.
type document struct {
	Result     `yaml:",inline"`
	Duration   string `json:"duration" yaml:"duration"`
	MovedBytes int64  `json:"moved_bytes" yaml:"moved_bytes"`
	Succeeded  bool   `json:"succeeded" yaml:"succeeded"`
}

func newDocument(r *Result) document {
	return document{
		Result:     *r,
		Duration:   r.Elapsed.String(),
		MovedBytes: r.MovedBytes(),
		Succeeded:  r.Stats.Failed() == 0 && !r.Interrupted,
	}
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
