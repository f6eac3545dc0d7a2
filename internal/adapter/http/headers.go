package http

import (
	"bytes"
	"math"
	"strings"
)

// Sentinel results of unsignedLongValue.
const (
	LongInvalid  int64 = -1
	LongOverflow int64 = -2
)

var (
	// tokenChars is the RFC 9110 tchar set used for header names.
	tokenChars = charTable(
		"!#$%&'*+-.^_`|~",
		"0123456789",
		"ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz",
	)
	// fieldValueChars is VCHAR plus SP and HTAB.
	fieldValueChars = func() (table [256]bool) {
		for c := 0x21; c < 0x7F; c++ {
			table[c] = true
		}
		table[' '] = true
		table['\t'] = true
		return table
	}()
)

// headerField is a parsed header line. Name and value are offsets into the
// exchange buffer.
type headerField struct {
	key        string
	nameStart  int
	nameEnd    int
	valueStart int
	valueEnd   int
	next       int
}

// headerTable keeps headers in arrival order and chains repeated names.
type headerTable struct {
	fields []headerField
	first  map[string]int
	last   map[string]int
}

func (t *headerTable) reset() {
	t.fields = t.fields[:0]
	if t.first == nil {
		t.first = make(map[string]int)
		t.last = make(map[string]int)
		return
	}
	for key := range t.first {
		delete(t.first, key)
	}
	for key := range t.last {
		delete(t.last, key)
	}
}

func (t *headerTable) add(field headerField) {
	idx := len(t.fields)
	field.next = -1
	t.fields = append(t.fields, field)
	if prev, ok := t.last[field.key]; ok {
		t.fields[prev].next = idx
	} else {
		t.first[field.key] = idx
	}
	t.last[field.key] = idx
}

// lookup returns the index of the first field named name, or -1.
func (t *headerTable) lookup(name string) int {
	if idx, ok := t.first[strings.ToLower(name)]; ok {
		return idx
	}
	return -1
}

// parseHeaders parses header lines up to and including the empty line.
func (x *Exchange) parseHeaders() {
	for {
		x.state = stateParseHeader

		switch x.readLine() {
		case readOK:
		case readMaxBuffer:
			x.state = stateReadMaxBuffer
			x.fail(parseHeadersTooLarge)
			return
		case readEOF, readUnexpectedEOF:
			x.state = stateReadEOF
			x.fail(parseUnexpectedEOF)
			return
		default:
			x.state = stateError
			return
		}

		if x.consumeIfEmptyLine() {
			return
		}
		if !x.parseHeaderLine() {
			x.fail(parseInvalidHeader)
			return
		}
	}
}

// parseHeaderLine parses "name:" OWS value OWS CRLF from the current line.
func (x *Exchange) parseHeaderLine() bool {
	x.state = stateParseHeaderName
	start := x.bufferIndex
	i := start
	for tokenChars[x.buffer[i]] {
		i++
	}
	if i == start || x.buffer[i] != ':' {
		return false
	}
	nameEnd := i

	x.state = stateParseHeaderValue
	i++
	for isOWS(x.buffer[i]) {
		i++
	}
	valueStart := i
	for fieldValueChars[x.buffer[i]] {
		i++
	}
	if x.lineLimit-i != 2 || x.buffer[i] != '\r' {
		return false
	}
	valueEnd := i
	for valueEnd > valueStart && isOWS(x.buffer[valueEnd-1]) {
		valueEnd--
	}

	x.headers.add(headerField{
		key:        strings.ToLower(string(x.buffer[start:nameEnd])),
		nameStart:  start,
		nameEnd:    nameEnd,
		valueStart: valueStart,
		valueEnd:   valueEnd,
	})
	x.bufferIndex = x.lineLimit
	return true
}

func isOWS(c byte) bool {
	return c == ' ' || c == '\t'
}

// parseRequestEnd validates the parsed head and derives framing and
// keep-alive.
func (x *Exchange) parseRequestEnd() {
	host := x.headerBytes(x.headers.lookup("host"))
	if len(bytes.TrimSpace(host)) == 0 {
		x.fail(parseMissingHost)
		return
	}

	x.contentLength = -1
	if idx := x.headers.lookup("content-length"); idx >= 0 {
		value := unsignedLongValue(x.headerBytes(idx))
		if value < 0 {
			x.fail(parseInvalidContentLength)
			return
		}
		for next := x.headers.fields[idx].next; next >= 0; next = x.headers.fields[next].next {
			if unsignedLongValue(x.headerBytes(next)) != value {
				x.fail(parseInvalidContentLength)
				return
			}
		}
		if x.headers.lookup("transfer-encoding") >= 0 {
			x.fail(parseInvalidHeader)
			return
		}
		x.contentLength = value
	} else if x.headers.lookup("transfer-encoding") >= 0 {
		x.fail(parseNotImplemented)
		return
	}

	x.keepAlive = x.versionMajor == 1 && x.versionMinor == 1
	if x.connectionToken("close") {
		x.keepAlive = false
	}
	x.state = stateRequest
}

// connectionToken reports whether any Connection header lists token.
func (x *Exchange) connectionToken(token string) bool {
	for idx := x.headers.lookup("connection"); idx >= 0; idx = x.headers.fields[idx].next {
		for _, part := range bytes.Split(x.headerBytes(idx), []byte{','}) {
			if strings.EqualFold(string(bytes.TrimSpace(part)), token) {
				return true
			}
		}
	}
	return false
}

// headerBytes returns a view of the value of field idx, or nil for -1.
func (x *Exchange) headerBytes(idx int) []byte {
	if idx < 0 {
		return nil
	}
	field := &x.headers.fields[idx]
	return x.buffer[field.valueStart:field.valueEnd]
}

// unsignedLongValue parses an ASCII digit run. It returns LongInvalid for
// empty or non-digit input and LongOverflow above math.MaxInt64.
func unsignedLongValue(b []byte) int64 {
	if len(b) == 0 {
		return LongInvalid
	}
	for _, c := range b {
		if !isDigit(c) {
			return LongInvalid
		}
	}

	var value int64
	for _, c := range b {
		digit := int64(c - '0')
		if value > (math.MaxInt64-digit)/10 {
			return LongOverflow
		}
		value = value*10 + digit
	}
	return value
}
