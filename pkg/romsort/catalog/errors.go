package catalog

import (
	"errors"
	"fmt"
)

// Structural problems reported inside a ParseError.
var (
	ErrNoRoot        = errors.New("document has no root element")
	ErrMultipleRoots = errors.New("document has more than one root element")
	ErrStrayText     = errors.New("text outside the root element")
)

// ParseError reports a catalog that is not a well-formed document.
// It is fatal to a run: no file is touched once it is returned.
type ParseError struct {
	// Path is the catalog file, empty when parsing from a reader.
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parsing catalog: %v", e.Err)
	}
	return fmt.Sprintf("parsing catalog %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is or wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
