package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jamalishaq/wayx/internal/adapter/spool"
)

// FormURLEncoded is the only media type Form can decode.
const FormURLEncoded = "application/x-www-form-urlencoded"

var (
	// ErrUnexpectedEOF reports a peer that closed before sending the declared
	// Content-Length. The connection is not reused.
	ErrUnexpectedEOF = errors.New("http: unexpected EOF in request body")

	// ErrInvalidForm reports a form body with bytes outside the query grammar.
	ErrInvalidForm = errors.New("http: invalid application/x-www-form-urlencoded content in request body")
)

// UnsupportedMediaTypeError is returned by Form when the request body is not
// form-encoded. The caller may fall back to reading Body directly.
type UnsupportedMediaTypeError struct {
	MediaType string
	Supported []string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("http: unsupported media type %q (supported: %s)", e.MediaType, strings.Join(e.Supported, ", "))
}

// bodyKind tracks where the request body lives.
type bodyKind uint8

const (
	bodyPending bodyKind = iota
	bodyEmpty
	bodyInBuffer
	bodyInFile
	bodyDiscarded
	bodyFailed
)

// Form is a decoded application/x-www-form-urlencoded body.
type Form struct {
	params *params
}

// Get returns the first value of the named field, or "".
func (f *Form) Get(name string) string {
	value, _ := f.params.lookup(name)
	return value
}

// Lookup returns the first value of the named field and whether it was sent.
func (f *Form) Lookup(name string) (string, bool) {
	return f.params.lookup(name)
}

// All returns every value of the named field.
func (f *Form) All(name string) []string {
	return f.params.all(name)
}

// Names returns field names in first-seen order.
func (f *Form) Names() []string {
	return f.params.nameList()
}

// Map returns a copy of all fields.
func (f *Form) Map() map[string][]string {
	return f.params.toMap()
}

// canBuffer reports whether a body of n bytes fits in the working buffer.
func (x *Exchange) canBuffer(n int64) bool {
	return int64(x.bufferSizeMax-x.bufferIndex) >= n
}

// Body returns the request body. The body is read from the connection on the
// first call; bodies that do not fit the buffer are spooled to a temp file.
func (x *Exchange) Body() (io.Reader, error) {
	x.checkRequest()
	if err := x.loadBody(); err != nil {
		return nil, err
	}

	switch x.body {
	case bodyInBuffer:
		return bytes.NewReader(x.buffer[x.bodyStart:x.bodyEnd]), nil
	case bodyInFile:
		return x.bodyFile.Reader(), nil
	}
	return bytes.NewReader(nil), nil
}

func (x *Exchange) loadBody() error {
	if x.body != bodyPending {
		return x.bodyErr
	}

	n := x.contentLength
	if n <= 0 {
		x.body = bodyEmpty
		return nil
	}

	x.state = stateParseBody
	var err error
	if x.canBuffer(n) {
		err = x.bufferBody(int(n))
	} else {
		err = x.spoolBody(n)
	}
	x.state = stateRequest

	if err != nil {
		x.body = bodyFailed
		x.bodyErr = err
		x.keepAlive = false
		logWarn(x.logger, "read request body failed", "content_length", n, "error", err)
	}
	return err
}

func (x *Exchange) bufferBody(n int) error {
	switch x.ensure(n) {
	case readOK:
	case readError:
		return fmt.Errorf("read body: %w", x.err)
	default:
		return ErrUnexpectedEOF
	}

	x.bodyStart = x.bufferIndex
	x.bodyEnd = x.bufferIndex + n
	x.bufferIndex = x.bodyEnd
	x.body = bodyInBuffer
	return nil
}

// spoolBody copies n body bytes to a temp file in chunks of the free buffer.
func (x *Exchange) spoolBody(n int64) error {
	file, err := spool.Create(x.tempDir, x.spool)
	if err != nil {
		return err
	}
	x.bodyFile = file

	if err := x.drainBody(n, file); err != nil {
		return err
	}
	x.body = bodyInFile
	return nil
}

// discardBody skips an unread body so the next request can be parsed.
func (x *Exchange) discardBody() error {
	if err := x.drainBody(x.contentLength, io.Discard); err != nil {
		x.body = bodyFailed
		return err
	}
	x.body = bodyDiscarded
	return nil
}

// drainBody moves n body bytes to dst: first those already buffered, then
// reads capped at the remaining length so pipelined bytes stay unread.
func (x *Exchange) drainBody(n int64, dst io.Writer) error {
	remaining := n

	if buffered := int64(x.bufferLimit - x.bufferIndex); buffered > 0 {
		take := buffered
		if take > remaining {
			take = remaining
		}
		if _, err := dst.Write(x.buffer[x.bufferIndex : x.bufferIndex+int(take)]); err != nil {
			return err
		}
		x.bufferIndex += int(take)
		remaining -= take
	}
	if remaining == 0 {
		return nil
	}

	// bufferIndex == bufferLimit here, so the tail of the buffer is free
	chunk := x.buffer[x.bufferLimit:]
	if len(chunk) < minBufferSize {
		chunk = make([]byte, minBufferSize)
	}
	for remaining > 0 {
		p := chunk
		if int64(len(p)) > remaining {
			p = p[:remaining]
		}
		read, err := x.conn.Read(p)
		if read > 0 {
			if _, werr := dst.Write(p[:read]); werr != nil {
				return werr
			}
			remaining -= int64(read)
		}
		if err != nil && remaining > 0 {
			if errors.Is(err, io.EOF) {
				return ErrUnexpectedEOF
			}
			x.err = err
			return fmt.Errorf("read body: %w", err)
		}
	}
	return nil
}

// removeBody deletes the spooled body file, if any.
func (x *Exchange) removeBody() error {
	if x.bodyFile == nil {
		return nil
	}
	err := x.bodyFile.Remove()
	x.bodyFile = nil
	return err
}

// Form decodes an application/x-www-form-urlencoded body. Any other media
// type yields an *UnsupportedMediaTypeError.
func (x *Exchange) Form() (*Form, error) {
	x.checkRequest()
	if x.form != nil {
		return x.form, nil
	}

	mediaType := mediaTypeOf(x.Header("Content-Type"))
	if mediaType != FormURLEncoded {
		return nil, &UnsupportedMediaTypeError{
			MediaType: mediaType,
			Supported: []string{FormURLEncoded},
		}
	}

	body, err := x.Body()
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read form: %w", err)
	}
	if !validFormContent(data) {
		return nil, ErrInvalidForm
	}

	x.form = &Form{params: parseParams(data)}
	return x.form, nil
}

// validFormContent applies the query grammar to a form body: every '%' must
// start a well-formed UTF-8 percent sequence.
func validFormContent(data []byte) bool {
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '%':
			_, _, n, ok := decodePercent(data, i)
			if !ok {
				return false
			}
			i += n
		case queryChars[c]:
			i++
		default:
			return false
		}
	}
	return true
}

// mediaTypeOf strips parameters and normalizes case.
func mediaTypeOf(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
