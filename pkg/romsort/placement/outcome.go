package placement

import (
	"fmt"

	"github.com/jamesainslie/romsort/pkg/romsort/catalog"
)

// Kind classifies what happened to a single file.
type Kind int

// Outcome kinds. InPlace marks a file that already sits at its destination;
// it is counted but never reported.
const (
	Moved Kind = iota + 1
	SizeMismatch
	CRCMismatch
	Unmatched
	MoveFailed
	ReadFailed
	InPlace
)

var kindNames = map[Kind]string{
	Moved:        "moved",
	SizeMismatch: "size_mismatch",
	CRCMismatch:  "crc_mismatch",
	Unmatched:    "unmatched",
	MoveFailed:   "move_failed",
	ReadFailed:   "read_failed",
	InPlace:      "in_place",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", text)
}

// Success reports whether the kind leaves the file correctly placed.
func (k Kind) Success() bool {
	return k == Moved || k == InPlace
}

// Outcome is the result of placing one file.
type Outcome struct {
	Kind Kind

	// Path is the file's location when it was examined.
	Path string

	// Dest is set for Moved, MoveFailed and InPlace.
	Dest string

	// Size is the number of bytes digested.
	Size int64

	// Entry is the matched catalog entry. Nil for Unmatched and ReadFailed.
	Entry *catalog.Entry

	// Err is the cause for MoveFailed and ReadFailed.
	Err error
}
