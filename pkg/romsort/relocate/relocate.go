// Package relocate moves verified files into place. A move is all or
// nothing: the file ends up at its destination with identical content, or
// it stays where it was.
package relocate

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jamesainslie/romsort/pkg/romsort/digest"
	"github.com/jamesainslie/romsort/pkg/romsort/logging"
)

// ErrDestinationExists is returned when something already occupies the
// destination path. Existing files are never overwritten.
var ErrDestinationExists = errors.New("destination already exists")

// ErrCopyMismatch is returned when a cross-device copy does not read back
// identical to its source.
var ErrCopyMismatch = errors.New("copy verification failed")

// MoveFunc moves the file at from to to.
type MoveFunc func(from, to string) error

// CrossDeviceError reports a failed copy fallback after rename hit EXDEV.
type CrossDeviceError struct {
	From string
	To   string
	Err  error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device move %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// Move renames from to to, creating the destination directory first.
// When the two paths are on different filesystems the file is copied,
// verified against the source, synced and only then removed from its old
// location.
func Move(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, to)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking destination: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	err := os.Rename(from, to)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("renaming: %w", err)
	}

	logging.Get("relocate").Debug("rename crossed devices, copying", "from", from, "to", to)

	if err := copyVerified(from, to); err != nil {
		return &CrossDeviceError{From: from, To: to, Err: err}
	}
	if err := os.Remove(from); err != nil {
		// The verified copy is in place; the stray source is reported but
		// the move itself stands.
		logging.Get("relocate").Warn("failed to remove source after copy", "path", from, "error", err)
	}
	return nil
}

// DryRun is a MoveFunc that reports success without touching anything.
func DryRun(from, to string) error {
	if _, err := os.Lstat(to); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, to)
	}
	return nil
}

// copyVerified copies src to dst and reads dst back to confirm it matches.
// On any failure dst is removed.
func copyVerified(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
		}
		return fmt.Errorf("creating destination: %w", err)
	}
	defer func() {
		_ = out.Close()
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	srcHash := md5.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHash))
	if err != nil {
		return fmt.Errorf("copying: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing destination: %w", err)
	}

	if written != info.Size() {
		return fmt.Errorf("%w: source %d bytes, copied %d bytes", ErrCopyMismatch, info.Size(), written)
	}

	copied, err := digest.File(dst)
	if err != nil {
		return fmt.Errorf("reading back copy: %w", err)
	}
	if copied.Size != written || copied.MD5 != hex.EncodeToString(srcHash.Sum(nil)) {
		return fmt.Errorf("%w: checksum differs", ErrCopyMismatch)
	}

	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		logging.Get("relocate").Debug("failed to preserve mtime", "path", dst, "error", err)
	}
	return nil
}
