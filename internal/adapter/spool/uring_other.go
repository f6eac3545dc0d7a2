//go:build !linux

package spool

// NewURingWriter reports ErrURingUnsupported outside Linux.
func NewURingWriter(entries uint) (Writer, error) {
	return nil, ErrURingUnsupported
}
