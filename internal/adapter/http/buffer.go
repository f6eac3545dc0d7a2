package http

import (
	"bytes"
	"errors"
	"io"
	"math/bits"
)

// minBufferSize is the smallest accepted buffer configuration.
const minBufferSize = 128

// maxPowerOfTwo caps powerOfTwo so buffer sizes stay addressable.
const maxPowerOfTwo = 1 << 30

// readResult is the outcome of a buffer fill.
type readResult uint8

const (
	readOK readResult = iota
	readEOF
	readUnexpectedEOF
	readMaxBuffer
	readError
)

// powerOfTwo rounds size up to the next power of two.
func powerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	if size > maxPowerOfTwo {
		return maxPowerOfTwo
	}
	return 1 << bits.Len(uint(size-1))
}

func isPowerOfTwo(size int) bool {
	return size > 0 && size&(size-1) == 0
}

// grow reallocates the buffer so it holds at least size bytes. It reports
// false when that would exceed bufferSizeMax.
func (x *Exchange) grow(size int) bool {
	if size <= len(x.buffer) {
		return true
	}
	if size > x.bufferSizeMax {
		return false
	}
	newSize := powerOfTwo(size)
	if newSize > x.bufferSizeMax {
		newSize = x.bufferSizeMax
	}
	buffer := make([]byte, newSize)
	copy(buffer, x.buffer[:x.bufferLimit])
	x.buffer = buffer
	return true
}

// fill performs one socket read into the free tail of the buffer, doubling
// the buffer first when it is full.
func (x *Exchange) fill() readResult {
	if x.bufferLimit == len(x.buffer) {
		size := len(x.buffer) * 2
		if size > x.bufferSizeMax {
			size = x.bufferSizeMax
		}
		if size <= len(x.buffer) || !x.grow(size) {
			return readMaxBuffer
		}
	}

	n, err := x.conn.Read(x.buffer[x.bufferLimit:])
	x.bufferLimit += n
	if n > 0 || err == nil {
		return readOK
	}
	if errors.Is(err, io.EOF) {
		if x.bufferLimit == 0 {
			return readEOF
		}
		return readUnexpectedEOF
	}
	x.err = err
	return readError
}

// ensure makes at least n unread bytes available starting at bufferIndex.
func (x *Exchange) ensure(n int) readResult {
	need := x.bufferIndex + n
	if need > x.bufferSizeMax {
		return readMaxBuffer
	}
	if !x.grow(need) {
		return readMaxBuffer
	}
	for x.bufferLimit < need {
		if r := x.fill(); r != readOK {
			if r == readEOF {
				return readUnexpectedEOF
			}
			return r
		}
	}
	return readOK
}

// readLine makes a full LF-terminated line available at bufferIndex and sets
// lineLimit one past its LF.
func (x *Exchange) readLine() readResult {
	scanned := x.bufferIndex
	for {
		if i := bytes.IndexByte(x.buffer[scanned:x.bufferLimit], '\n'); i >= 0 {
			x.lineLimit = scanned + i + 1
			return readOK
		}
		scanned = x.bufferLimit
		if r := x.fill(); r != readOK {
			return r
		}
	}
}

// matches consumes lit when the current line starts with it. The cursor does
// not move on a mismatch.
func (x *Exchange) matches(lit []byte) bool {
	if !bytes.HasPrefix(x.buffer[x.bufferIndex:x.lineLimit], lit) {
		return false
	}
	x.bufferIndex += len(lit)
	return true
}

// indexOf returns the absolute index of the first a or b in the current line,
// or -1.
func (x *Exchange) indexOf(a, b byte) int {
	for i := x.bufferIndex; i < x.lineLimit; i++ {
		if c := x.buffer[i]; c == a || c == b {
			return i
		}
	}
	return -1
}

// consumeIfEndOfLine consumes the rest of the line when it is exactly CRLF.
func (x *Exchange) consumeIfEndOfLine() bool {
	if x.lineLimit-x.bufferIndex != 2 || x.buffer[x.bufferIndex] != '\r' {
		return false
	}
	x.bufferIndex = x.lineLimit
	return true
}

// consumeIfEmptyLine consumes the current line when it is empty.
func (x *Exchange) consumeIfEmptyLine() bool {
	return x.consumeIfEndOfLine()
}

// compact moves unread bytes to the front of the buffer before the next
// request. The buffer keeps its grown size.
func (x *Exchange) compact() {
	n := copy(x.buffer, x.buffer[x.bufferIndex:x.bufferLimit])
	x.bufferIndex = 0
	x.bufferLimit = n
	x.lineLimit = 0
}
