package http

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jamalishaq/wayx/internal/adapter/spool"
	"github.com/jamalishaq/wayx/internal/usecase"
)

const (
	defaultBufferSizeInitial = 1024
	defaultBufferSizeMax     = 16384
)

// ErrRequestAfterSend is the panic value raised when a request method is
// called outside the window between a successful parse and the response.
var ErrRequestAfterSend = errors.New("http: request methods may only be invoked after a successful parse and before the response is sent")

// Config configures an Exchange.
type Config struct {
	// BufferSizeInitial and BufferSizeMax bound the request buffer. Both must
	// be powers of two >= 128 with BufferSizeMax >= BufferSizeInitial.
	BufferSizeInitial int
	BufferSizeMax     int

	// Clock supplies the Date header. Defaults to time.Now.
	Clock func() time.Time

	// TempDir holds spooled request bodies. Defaults to os.TempDir.
	TempDir string

	// Spool writes spooled request bodies. Defaults to spool.FileWriter.
	Spool spool.Writer

	Logger usecase.Logger
}

// DefaultConfig returns the configuration used by HandleConn.
func DefaultConfig() Config {
	return Config{
		BufferSizeInitial: defaultBufferSizeInitial,
		BufferSizeMax:     defaultBufferSizeMax,
		Clock:             time.Now,
	}
}

// ConfigError reports a rejected buffer configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "http: invalid " + e.Field + ": " + e.Message
}

// Validate checks the buffer bounds.
func (c Config) Validate() error {
	switch {
	case c.BufferSizeInitial < minBufferSize:
		return &ConfigError{Field: "BufferSizeInitial", Message: "initial size must be >= 128"}
	case c.BufferSizeMax < minBufferSize:
		return &ConfigError{Field: "BufferSizeMax", Message: "max size must be >= 128"}
	case !isPowerOfTwo(c.BufferSizeInitial):
		return &ConfigError{Field: "BufferSizeInitial", Message: "initial size must be a power of two"}
	case !isPowerOfTwo(c.BufferSizeMax):
		return &ConfigError{Field: "BufferSizeMax", Message: "max size must be a power of two"}
	case c.BufferSizeMax < c.BufferSizeInitial:
		return &ConfigError{Field: "BufferSizeMax", Message: "max size must be >= initial size"}
	}
	return nil
}

// Exchange is one HTTP/1.1 connection turn: it parses a request in place
// from its buffer and writes the response. It is reused for each request on
// a kept-alive connection and must only be used by one goroutine.
type Exchange struct {
	conn    net.Conn
	ctx     context.Context
	clock   func() time.Time
	logger  usecase.Logger
	tempDir string
	spool   spool.Writer

	buffer        []byte
	bufferIndex   int
	bufferLimit   int
	lineLimit     int
	bufferSizeMax int

	state       State
	parseStatus parseStatus
	err         error
	requests    int
	keepAlive   bool
	closed      bool

	method       string
	versionMajor byte
	versionMinor byte
	pathStart    int
	pathEnd      int
	queryStart   int
	queryEnd     int
	path         string
	pathDecoded  bool
	query        *params
	headers      headerTable

	contentLength int64
	body          bodyKind
	bodyStart     int
	bodyEnd       int
	bodyFile      *spool.File
	bodyErr       error
	form          *Form

	status      int
	respHeaders []responseHeader
	sent        bool
	out         bytes.Buffer
}

// NewExchange validates cfg and wraps conn.
func NewExchange(conn net.Conn, cfg Config) (*Exchange, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newExchange(conn, cfg), nil
}

// newExchange skips validation so tests can force tiny buffers.
func newExchange(conn net.Conn, cfg Config) *Exchange {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	x := &Exchange{
		conn:          conn,
		ctx:           context.Background(),
		clock:         clock,
		logger:        cfg.Logger,
		tempDir:       cfg.TempDir,
		spool:         cfg.Spool,
		buffer:        make([]byte, cfg.BufferSizeInitial),
		bufferSizeMax: cfg.BufferSizeMax,
	}
	x.clearRequest()
	return x
}

// ShouldHandle parses the next request. It reports true when a valid request
// is ready for a handler. On a malformed request it writes the matching error
// response and reports false; it also reports false on EOF, on I/O errors and
// when the previous response closed the connection.
func (x *Exchange) ShouldHandle() bool {
	if x.closed || x.state == stateError {
		return false
	}
	if x.requests > 0 {
		if !x.keepAlive {
			return false
		}
		if err := x.reset(); err != nil {
			x.state = stateError
			x.err = err
			logWarn(x.logger, "discard request body failed", "error", err)
			return false
		}
	}
	x.requests++

	x.parse()

	switch {
	case x.state == stateError:
		logWarn(x.logger, "read request failed", "error", x.err)
		return false
	case x.parseStatus == parseNormal:
		return true
	case x.parseStatus.isError():
		x.rejectRequest()
		return false
	default:
		logDebug(x.logger, "connection closed by peer", "state", x.state, "status", x.parseStatus)
		return false
	}
}

func (x *Exchange) parse() {
	x.state = stateStart
	x.parseRequestLine()
	if x.failed() {
		return
	}
	x.bufferIndex = x.lineLimit

	x.parseHeaders()
	if x.failed() {
		return
	}

	x.parseRequestEnd()
}

// fail records the first parse failure of the current request.
func (x *Exchange) fail(status parseStatus) {
	if x.parseStatus == parseNormal {
		x.parseStatus = status
	}
}

func (x *Exchange) failed() bool {
	return x.parseStatus != parseNormal || x.state == stateError
}

// rejectRequest writes the fixed response for a failed parse.
func (x *Exchange) rejectRequest() {
	code, body := x.parseStatus.errorResponse()
	logDebug(x.logger, "request rejected",
		"status", code,
		"reason", x.parseStatus,
		"state", x.state,
	)

	x.keepAlive = false
	x.status = code
	x.respHeaders = x.respHeaders[:0]
	x.SetDate()
	if body != "" {
		x.SetHeader("Content-Type", textPlainUTF8)
	}
	x.SetHeader("Content-Length", strconv.Itoa(len(body)))
	x.SetHeader("Connection", "close")
	if err := x.writeResponse([]byte(body)); err != nil {
		logWarn(x.logger, "write error response failed", "status", code, "error", err)
	}
}

// reset prepares the exchange for the next request on the same connection.
func (x *Exchange) reset() error {
	if x.body == bodyPending && x.contentLength > 0 {
		if err := x.discardBody(); err != nil {
			return err
		}
	}
	if err := x.removeBody(); err != nil {
		logWarn(x.logger, "remove spooled body failed", "error", err)
	}
	x.compact()
	x.clearRequest()
	return nil
}

func (x *Exchange) clearRequest() {
	x.state = stateStart
	x.parseStatus = parseNormal
	x.method = ""
	x.versionMajor, x.versionMinor = 0, 0
	x.pathStart, x.pathEnd = 0, 0
	x.queryStart, x.queryEnd = -1, -1
	x.path = ""
	x.pathDecoded = false
	x.query = nil
	x.headers.reset()

	x.contentLength = -1
	x.body = bodyPending
	x.bodyStart, x.bodyEnd = 0, 0
	x.bodyFile = nil
	x.bodyErr = nil
	x.form = nil

	x.status = 0
	x.respHeaders = x.respHeaders[:0]
	x.sent = false
	x.out.Reset()
}

// Close releases the connection and any spooled body. It is idempotent.
func (x *Exchange) Close() error {
	if x.closed {
		return nil
	}
	x.closed = true
	bodyErr := x.removeBody()
	connErr := x.conn.Close()
	return errors.Join(bodyErr, connErr)
}

// KeepAlive reports whether the connection may serve another request.
func (x *Exchange) KeepAlive() bool {
	return x.keepAlive && x.state != stateError && !x.closed
}

// State returns the current state machine position.
func (x *Exchange) State() State {
	return x.state
}

// Err returns the transport error that stopped the exchange, if any.
func (x *Exchange) Err() error {
	return x.err
}

// Context returns the context of the connection.
func (x *Exchange) Context() context.Context {
	if x.ctx == nil {
		return context.Background()
	}
	return x.ctx
}

// HexDump renders the buffered bytes for debugging. Each cursor that falls
// inside the buffered window is marked with "^^ name" below its byte.
func (x *Exchange) HexDump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "state=%s status=%s bufferIndex=%d lineLimit=%d bufferLimit=%d capacity=%d\n",
		x.state, x.parseStatus, x.bufferIndex, x.lineLimit, x.bufferLimit, len(x.buffer))

	cursors := []struct {
		name string
		pos  int
	}{
		{"bufferIndex", x.bufferIndex},
		{"lineLimit", x.lineLimit},
	}
	lines := strings.SplitAfter(hex.Dump(x.buffer[:x.bufferLimit]), "\n")
	for row, line := range lines {
		b.WriteString(line)
		for _, cursor := range cursors {
			if cursor.pos < x.bufferLimit && cursor.pos/16 == row {
				b.WriteString(strings.Repeat(" ", hexDumpColumn(cursor.pos%16)))
				b.WriteString("^^ ")
				b.WriteString(cursor.name)
				b.WriteByte('\n')
			}
		}
	}
	return b.String()
}

// hexDumpColumn is the column of byte i of a hex.Dump row.
func hexDumpColumn(i int) int {
	col := 10 + 3*i
	if i >= 8 {
		col++
	}
	return col
}

// checkRequest panics with ErrRequestAfterSend outside the request window.
func (x *Exchange) checkRequest() {
	if x.sent || x.requests == 0 || x.parseStatus != parseNormal {
		panic(ErrRequestAfterSend)
	}
}

// Method returns the request method.
func (x *Exchange) Method() string {
	x.checkRequest()
	return x.method
}

// Path returns the percent-decoded request path.
func (x *Exchange) Path() string {
	x.checkRequest()
	if !x.pathDecoded {
		x.path = decodeComponent(x.buffer[x.pathStart:x.pathEnd], false)
		x.pathDecoded = true
	}
	return x.path
}

// RawPath returns the request path as received.
func (x *Exchange) RawPath() string {
	x.checkRequest()
	return string(x.buffer[x.pathStart:x.pathEnd])
}

// RawQuery returns the query as received, without the '?'.
func (x *Exchange) RawQuery() string {
	x.checkRequest()
	if x.queryStart < 0 {
		return ""
	}
	return string(x.buffer[x.queryStart:x.queryEnd])
}

func (x *Exchange) queryParams() *params {
	if x.query == nil {
		var raw []byte
		if x.queryStart >= 0 {
			raw = x.buffer[x.queryStart:x.queryEnd]
		}
		x.query = parseParams(raw)
	}
	return x.query
}

// QueryParam returns the first value of the named query parameter, or "".
func (x *Exchange) QueryParam(name string) string {
	value, _ := x.LookupQueryParam(name)
	return value
}

// LookupQueryParam returns the first value of the named query parameter and
// whether it was present.
func (x *Exchange) LookupQueryParam(name string) (string, bool) {
	x.checkRequest()
	return x.queryParams().lookup(name)
}

// QueryParamAll returns every value of the named query parameter.
func (x *Exchange) QueryParamAll(name string) []string {
	x.checkRequest()
	return x.queryParams().all(name)
}

// QueryParamNames returns the query parameter names in first-seen order.
func (x *Exchange) QueryParamNames() []string {
	x.checkRequest()
	return x.queryParams().nameList()
}

// Header returns the first value of the named request header, or "".
func (x *Exchange) Header(name string) string {
	x.checkRequest()
	return string(x.headerBytes(x.headers.lookup(name)))
}

// HeaderValues returns every value of the named request header in order.
func (x *Exchange) HeaderValues(name string) []string {
	x.checkRequest()
	var values []string
	for idx := x.headers.lookup(name); idx >= 0; idx = x.headers.fields[idx].next {
		values = append(values, string(x.headerBytes(idx)))
	}
	return values
}

// HeaderNames returns request header names as first received.
func (x *Exchange) HeaderNames() []string {
	x.checkRequest()
	names := make([]string, 0, len(x.headers.first))
	for i := range x.headers.fields {
		field := &x.headers.fields[i]
		if x.headers.first[field.key] == i {
			names = append(names, string(x.buffer[field.nameStart:field.nameEnd]))
		}
	}
	return names
}

// HeaderUnsignedLong parses the first value of the named header as an
// unsigned decimal. It returns LongInvalid when the header is absent or not a
// digit run and LongOverflow when it does not fit an int64.
func (x *Exchange) HeaderUnsignedLong(name string) int64 {
	x.checkRequest()
	return unsignedLongValue(x.headerBytes(x.headers.lookup(name)))
}
