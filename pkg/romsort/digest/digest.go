// Package digest computes the checksums used to identify and verify ROM
// files. A file is read exactly once: every chunk feeds the MD5 and CRC32
// accumulators together and the byte count is taken from the stream itself.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
)

// ChunkSize is the read buffer size used when streaming a file.
const ChunkSize = 64 * 1024

// Result holds the checksums of a file's content.
type Result struct {
	// MD5 is the lowercase hex MD5 of the content.
	MD5 string `json:"md5" yaml:"md5"`

	// CRC32 is the IEEE CRC32 as 8 lowercase, zero-padded hex digits.
	CRC32 string `json:"crc32" yaml:"crc32"`

	// Size is the number of bytes streamed.
	Size int64 `json:"size" yaml:"size"`
}

// Digester computes a Result for a file path.
type Digester interface {
	Digest(path string) (Result, error)
}

// IOError reports a file that could not be opened or read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("reading %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err is or wraps an *IOError.
func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}

// File digests the file at path.
func File(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, &IOError{Path: path, Err: err}
	}
	defer f.Close()

	res, err := Reader(f)
	if err != nil {
		return Result{}, &IOError{Path: path, Err: err}
	}
	return res, nil
}

// Reader digests everything read from r until EOF.
func Reader(r io.Reader) (Result, error) {
	return readChunks(r, make([]byte, ChunkSize))
}

func readChunks(r io.Reader, buf []byte) (Result, error) {
	md5Hash := md5.New()
	var crc uint32
	var size int64

	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			md5Hash.Write(chunk)
			crc = crc32.Update(crc, crc32.IEEETable, chunk)
			size += int64(n)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Result{}, err
		}
	}

	return Result{
		MD5:   hex.EncodeToString(md5Hash.Sum(nil)),
		CRC32: fmt.Sprintf("%08x", crc),
		Size:  size,
	}, nil
}

// FileDigester digests files directly from disk.
type FileDigester struct{}

// Digest implements Digester.
func (FileDigester) Digest(path string) (Result, error) {
	return File(path)
}

var _ Digester = FileDigester{}
