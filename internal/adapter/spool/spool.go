// Package spool stores request bodies that do not fit the exchange buffer in
// temporary files.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FilePattern is the os.CreateTemp pattern used for spooled bodies.
const FilePattern = "request-body-*.tmp"

// ErrURingUnsupported is returned by NewURingWriter where io_uring is unavailable.
var ErrURingUnsupported = errors.New("spool: io_uring is not supported on this platform")

// Writer performs positioned writes into a spool file.
// Implementations must be safe for concurrent use by multiple connections.
type Writer interface {
	WriteAt(f *os.File, p []byte, off int64) error
	Close() error
}

// FileWriter writes with (*os.File).WriteAt.
type FileWriter struct{}

// WriteAt writes all of p at off.
func (FileWriter) WriteAt(f *os.File, p []byte, off int64) error {
	_, err := f.WriteAt(p, off)
	return err
}

// Close is a no-op.
func (FileWriter) Close() error { return nil }

// File is a spooled body: an append-only temp file that is removed exactly once.
type File struct {
	file    *os.File
	writer  Writer
	size    int64
	removed bool
}

// Create opens a new spool file in dir, or os.TempDir when dir is empty.
// A nil writer selects FileWriter.
func Create(dir string, writer Writer) (*File, error) {
	if writer == nil {
		writer = FileWriter{}
	}
	f, err := os.CreateTemp(dir, FilePattern)
	if err != nil {
		return nil, fmt.Errorf("spool: create temp file: %w", err)
	}
	return &File{file: f, writer: writer}, nil
}

// Write appends p to the file.
func (f *File) Write(p []byte) (int, error) {
	if f.removed {
		return 0, os.ErrClosed
	}
	if err := f.writer.WriteAt(f.file, p, f.size); err != nil {
		return 0, fmt.Errorf("spool: write: %w", err)
	}
	f.size += int64(len(p))
	return len(p), nil
}

// Size reports the number of bytes written.
func (f *File) Size() int64 { return f.size }

// Name returns the file path.
func (f *File) Name() string { return f.file.Name() }

// Reader returns an independent reader over the written bytes.
func (f *File) Reader() io.Reader {
	return io.NewSectionReader(f.file, 0, f.size)
}

// Remove closes and deletes the file. Calls after the first return nil.
func (f *File) Remove() error {
	if f == nil || f.removed {
		return nil
	}
	f.removed = true
	closeErr := f.file.Close()
	removeErr := os.Remove(f.file.Name())
	if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	return errors.Join(closeErr, removeErr)
}
