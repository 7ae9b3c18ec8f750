// Package config provides configuration management for romsort.
package config

// Default configuration values for romsort.
const (
	// DefaultRetentionDays is the default number of days to keep run history.
	DefaultRetentionDays = 90

	// DefaultOutput is the default output format.
	DefaultOutput = "pretty"

	// DefaultLogMaxSize is the default log size before rotation.
	DefaultLogMaxSize = "10MB"
)

// DefaultExclusions contains patterns skipped while walking a ROM tree.
var DefaultExclusions = []string{
	".git",
	".romsort",
	"*.part",
}

// DefaultComponents holds the default per-component log levels.
var DefaultComponents = map[string]string{
	"organize": "info",
	"digest":   "warn",
	"relocate": "info",
	"watcher":  "info",
}
