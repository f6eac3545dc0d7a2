package http

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	textPlainUTF8 = "text/plain; charset=utf-8"
	imfFixdate    = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// ErrAlreadySent is the panic value raised by a second send on one request.
var ErrAlreadySent = errors.New("http: response already sent")

type responseHeader struct {
	name  string
	value string
}

// SetStatus sets the response status code. The default is 200.
func (x *Exchange) SetStatus(code int) {
	x.checkResponse()
	x.status = code
	x.state = stateResponse
}

// SetHeader appends a response header. Headers are written in the order
// they were set.
func (x *Exchange) SetHeader(name, value string) {
	x.checkResponse()
	x.respHeaders = append(x.respHeaders, responseHeader{name: name, value: value})
	x.state = stateResponse
}

// SetDate appends a Date header derived from the exchange clock.
func (x *Exchange) SetDate() {
	x.SetHeader("Date", x.clock().UTC().Format(imfFixdate))
}

// SetCookie appends a Set-Cookie header.
func (x *Exchange) SetCookie(cookie *Cookie) error {
	value, err := cookie.String()
	if err != nil {
		return err
	}
	x.SetHeader("Set-Cookie", value)
	return nil
}

// Send writes the status line and headers with no body.
func (x *Exchange) Send() error {
	x.checkResponse()
	return x.writeResponse(nil)
}

// SendBytes writes the response with body. Content-Length is added when the
// handler did not set it.
func (x *Exchange) SendBytes(body []byte) error {
	x.checkResponse()
	if !x.hasResponseHeader("Content-Length") {
		x.respHeaders = append(x.respHeaders, responseHeader{name: "Content-Length", value: strconv.Itoa(len(body))})
	}
	return x.writeResponse(body)
}

// SendFile writes the response with the named file as body. Content-Length
// is taken from the file size.
func (x *Exchange) SendFile(name string) error {
	x.checkResponse()
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("open response body: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat response body: %w", err)
	}
	if !x.hasResponseHeader("Content-Length") {
		x.respHeaders = append(x.respHeaders, responseHeader{name: "Content-Length", value: strconv.FormatInt(info.Size(), 10)})
	}

	if err := x.writeResponse(nil); err != nil {
		return err
	}
	if x.method == "HEAD" {
		return nil
	}
	if _, err := io.CopyN(x.conn, f, info.Size()); err != nil {
		return x.writeFailed(err)
	}
	return nil
}

// Respond sends status with Date, Content-Type and Content-Length headers.
func (x *Exchange) Respond(status int, contentType string, body []byte) error {
	x.SetStatus(status)
	x.SetDate()
	x.SetHeader("Content-Type", contentType)
	return x.SendBytes(body)
}

// OK sends a 200 response.
func (x *Exchange) OK(contentType string, body []byte) error {
	return x.Respond(200, contentType, body)
}

// SendBadRequest sends a 400 with message as the body and closes the connection.
func (x *Exchange) SendBadRequest(message string) error {
	return x.sendError(400, message+"\n")
}

// SendNotFound sends a 404. The connection policy of the request is kept.
func (x *Exchange) SendNotFound() error {
	x.SetStatus(404)
	x.SetDate()
	x.SetHeader("Content-Type", textPlainUTF8)
	if !x.keepAlive {
		x.SetHeader("Connection", "close")
	}
	return x.SendBytes([]byte("Not Found\n"))
}

// SendMethodNotAllowed sends a 405 listing the allowed methods.
func (x *Exchange) SendMethodNotAllowed(allowed ...string) error {
	x.SetStatus(405)
	x.SetDate()
	x.SetHeader("Allow", strings.Join(allowed, ", "))
	x.SetHeader("Content-Type", textPlainUTF8)
	if !x.keepAlive {
		x.SetHeader("Connection", "close")
	}
	return x.SendBytes([]byte("Method Not Allowed\n"))
}

// SendRequestTimeout sends a 408 and closes the connection.
func (x *Exchange) SendRequestTimeout() error {
	return x.sendError(408, "Request Timeout\n")
}

// SendUnsupportedMediaType sends a 415 and closes the connection.
func (x *Exchange) SendUnsupportedMediaType() error {
	return x.sendError(415, "Unsupported Media Type\n")
}

// SendInternalServerError sends a 500 and closes the connection.
func (x *Exchange) SendInternalServerError() error {
	return x.sendError(500, "Internal Server Error\n")
}

func (x *Exchange) sendError(status int, body string) error {
	x.checkResponse()
	x.respHeaders = x.respHeaders[:0]
	x.SetStatus(status)
	x.SetDate()
	x.SetHeader("Content-Type", textPlainUTF8)
	x.SetHeader("Content-Length", strconv.Itoa(len(body)))
	x.SetHeader("Connection", "close")
	return x.writeResponse([]byte(body))
}

// checkResponse panics once the response has been sent.
func (x *Exchange) checkResponse() {
	if x.sent {
		panic(ErrAlreadySent)
	}
}

func (x *Exchange) hasResponseHeader(name string) bool {
	for _, h := range x.respHeaders {
		if strings.EqualFold(h.name, name) {
			return true
		}
	}
	return false
}

// writeResponse serializes the head and body in one write and settles
// keep-alive: a response Connection: close always wins.
func (x *Exchange) writeResponse(body []byte) error {
	if x.status == 0 {
		x.status = 200
	}

	x.out.Reset()
	x.out.WriteString("HTTP/1.1 ")
	x.out.WriteString(strconv.Itoa(x.status))
	x.out.WriteByte(' ')
	x.out.WriteString(statusText(x.status))
	x.out.WriteString("\r\n")
	for _, h := range x.respHeaders {
		x.out.WriteString(h.name)
		x.out.WriteString(": ")
		x.out.WriteString(sanitizeHeaderValue(h.value))
		x.out.WriteString("\r\n")
		if strings.EqualFold(h.name, "Connection") && strings.EqualFold(strings.TrimSpace(h.value), "close") {
			x.keepAlive = false
		}
	}
	x.out.WriteString("\r\n")
	if x.method != "HEAD" {
		x.out.Write(body)
	}

	x.sent = true
	x.state = stateSent
	if _, err := x.conn.Write(x.out.Bytes()); err != nil {
		return x.writeFailed(err)
	}
	return nil
}

func (x *Exchange) writeFailed(err error) error {
	x.keepAlive = false
	x.state = stateError
	x.err = err
	return fmt.Errorf("write response: %w", err)
}

// sanitizeHeaderValue drops CR, LF and other control bytes except HTAB.
func sanitizeHeaderValue(v string) string {
	clean := true
	for i := 0; i < len(v); i++ {
		if c := v[i]; (c < 0x20 && c != '\t') || c == 0x7F {
			clean = false
			break
		}
	}
	if clean {
		return v
	}

	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if (c < 0x20 && c != '\t') || c == 0x7F {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// statusText returns a reason phrase for a status code.
func statusText(code int) string {
	switch code {
	case 100:
		return "Continue"
	case 200:
		return "OK"
	case 201:
		return "Created"
	case 204:
		return "No Content"
	case 301:
		return "Moved Permanently"
	case 302:
		return "Found"
	case 303:
		return "See Other"
	case 304:
		return "Not Modified"
	case 307:
		return "Temporary Redirect"
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 408:
		return "Request Timeout"
	case 413:
		return "Content Too Large"
	case 414:
		return "URI Too Long"
	case 415:
		return "Unsupported Media Type"
	case 422:
		return "Unprocessable Content"
	case 431:
		return "Request Header Fields Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 503:
		return "Service Unavailable"
	case 505:
		return "HTTP Version Not Supported"
	default:
		return "Unknown"
	}
}
