//go:build linux

package spool

import (
	"fmt"
	"io"
	"os"

	"github.com/iceber/iouring-go"
)

// uringWriter submits pwrite requests to a shared io_uring instance.
type uringWriter struct {
	ring *iouring.IOURing
}

// NewURingWriter creates a Writer backed by an io_uring with the given queue depth.
func NewURingWriter(entries uint) (Writer, error) {
	ring, err := iouring.New(entries)
	if err != nil {
		return nil, fmt.Errorf("spool: init io_uring: %w", err)
	}
	return &uringWriter{ring: ring}, nil
}

// WriteAt writes all of p at off, resubmitting after short writes.
func (w *uringWriter) WriteAt(f *os.File, p []byte, off int64) error {
	fd := int(f.Fd())
	for len(p) > 0 {
		ch := make(chan iouring.Result, 1)
		if _, err := w.ring.SubmitRequest(iouring.Pwrite(fd, p, uint64(off)), ch); err != nil {
			return fmt.Errorf("submit pwrite: %w", err)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			return fmt.Errorf("pwrite: %w", err)
		}
		if n <= 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
		off += int64(n)
	}
	return nil
}

// Close releases the ring.
func (w *uringWriter) Close() error {
	return w.ring.Close()
}
