package organize

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

// Extensions lists the file extensions recognized as ROM images.
var Extensions = []string{".nes", ".sfc", ".smc", ".bin", ".md", ".zip"}

// IsCandidate reports whether path has a recognized extension.
// The comparison ignores case.
func IsCandidate(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// WalkError records a path the walk could not read.
type WalkError struct {
	Path string
	Err  error
}

// collect walks root and returns every candidate file in path order.
func (e *Engine) collect(ctx context.Context, root string) ([]string, []WalkError, error) {
	var (
		mu         sync.Mutex
		candidates []string
		walkErrs   []WalkError
	)

	conf := fastwalk.Config{
		Follow: false,
	}

	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if err != nil {
			mu.Lock()
			walkErrs = append(walkErrs, WalkError{Path: path, Err: err})
			mu.Unlock()
			return nil
		}

		if path != root && e.isExcluded(path) {
			if d.IsDir() {
				return fastwalk.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !IsCandidate(path) {
			return nil
		}

		mu.Lock()
		candidates = append(candidates, path)
		mu.Unlock()
		return nil
	})
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return nil, walkErrs, err
	}

	slices.Sort(candidates)
	return candidates, walkErrs, nil
}

func (e *Engine) isExcluded(path string) bool {
	return Excluded(path, e.opts.Exclude)
}

// Excluded reports whether path matches any of patterns.
func Excluded(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchesPattern(path, pattern) {
			return true
		}
	}
	return false
}

func matchesPattern(path, pattern string) bool {
	if pattern == "" {
		return false
	}

	// Directory prefix.
	if path == pattern || strings.HasPrefix(path, pattern+string(filepath.Separator)) {
		return true
	}

	if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
		return true
	}
	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}
	return false
}
