package http

// methodToken is a recognized request method, matched with its trailing SP.
type methodToken struct {
	prefix      []byte
	name        string
	implemented bool
}

var methodTokens = []methodToken{
	{prefix: []byte("GET "), name: "GET", implemented: true},
	{prefix: []byte("POST "), name: "POST", implemented: true},
	{prefix: []byte("HEAD "), name: "HEAD", implemented: true},
	{prefix: []byte("PUT "), name: "PUT", implemented: true},
	{prefix: []byte("PATCH "), name: "PATCH", implemented: true},
	{prefix: []byte("DELETE "), name: "DELETE", implemented: true},
	{prefix: []byte("OPTIONS "), name: "OPTIONS", implemented: true},
	{prefix: []byte("CONNECT "), name: "CONNECT"},
	{prefix: []byte("TRACE "), name: "TRACE"},
}

var versionHTTP11 = []byte("HTTP/1.1\r\n")

// targetEnd classifies how the request target was terminated.
type targetEnd uint8

const (
	targetEndInvalid targetEnd = iota
	targetEndSpace
	targetEndLine
)

// parseRequestLine parses method, target and version of the next request.
func (x *Exchange) parseRequestLine() {
	x.state = stateParseMethod

	switch x.readLine() {
	case readOK:
	case readEOF:
		x.state = stateReadEOF
		x.fail(parseEOF)
		return
	case readUnexpectedEOF:
		// truncated request line
		x.state = stateReadEOF
		x.fail(parseInvalidMethod)
		return
	case readMaxBuffer:
		x.state = stateReadMaxBuffer
		x.fail(parseURITooLong)
		return
	default:
		x.state = stateError
		return
	}

	x.parseMethod()
	if x.failed() {
		return
	}

	switch x.parseTarget() {
	case targetEndSpace:
		x.parseVersion()
	case targetEndLine:
		// legacy request line without a version
		if x.consumeIfEndOfLine() {
			x.fail(parseVersionNotSupported)
		} else {
			x.fail(parseInvalidRequestLineTerminator)
		}
	}
}

func (x *Exchange) parseMethod() {
	for i := range methodTokens {
		token := &methodTokens[i]
		if !x.matches(token.prefix) {
			continue
		}
		x.method = token.name
		if !token.implemented {
			x.fail(parseNotImplemented)
		}
		return
	}
	x.fail(parseInvalidMethod)
}

// parseTarget locates the path and query boundaries. Only the query is
// validated byte by byte; the path is decoded on demand.
func (x *Exchange) parseTarget() targetEnd {
	x.state = stateParsePath
	if x.buffer[x.bufferIndex] != '/' {
		x.fail(parseInvalidTarget)
		return targetEndInvalid
	}

	x.state = stateParsePathContents
	x.pathStart = x.bufferIndex
	for i := x.bufferIndex; i < x.lineLimit; i++ {
		c := x.buffer[i]
		if c == '?' {
			x.pathEnd = i
			x.bufferIndex = i + 1
			return x.parseQuery()
		}
		if end, ok := x.endOfTarget(i); ok {
			x.pathEnd = i
			return end
		}
		if !pathChars[c] {
			x.fail(parseInvalidTarget)
			return targetEndInvalid
		}
	}

	x.fail(parseInvalidTarget)
	return targetEndInvalid
}

func (x *Exchange) parseQuery() targetEnd {
	x.state = stateParseQuery
	x.queryStart = x.bufferIndex

	for i := x.bufferIndex; i < x.lineLimit; {
		c := x.buffer[i]
		if end, ok := x.endOfTarget(i); ok {
			x.queryEnd = i
			return end
		}
		switch {
		case c == '%':
			_, _, n, ok := decodePercent(x.buffer[:x.lineLimit], i)
			if !ok {
				x.fail(parseInvalidTarget)
				return targetEndInvalid
			}
			i += n
		case queryChars[c]:
			i++
		default:
			x.fail(parseInvalidTarget)
			return targetEndInvalid
		}
	}

	x.fail(parseInvalidTarget)
	return targetEndInvalid
}

// endOfTarget reports whether the byte at i ends the request target. It
// positions bufferIndex for the next stage.
func (x *Exchange) endOfTarget(i int) (targetEnd, bool) {
	switch x.buffer[i] {
	case ' ':
		x.bufferIndex = i + 1
		return targetEndSpace, true
	case '\n':
		x.bufferIndex = i
		return targetEndLine, true
	case '\r':
		if i+2 == x.lineLimit {
			x.bufferIndex = i
			return targetEndLine, true
		}
	}
	return targetEndInvalid, false
}

func (x *Exchange) parseVersion() {
	x.state = stateParseVersion

	if x.matches(versionHTTP11) {
		x.versionMajor, x.versionMinor = 1, 1
		return
	}

	end := x.indexOf('\r', '\n')
	major, minor, ok := parseVersionToken(x.buffer[x.bufferIndex:end])
	if !ok {
		x.fail(parseInvalidProtocol)
		return
	}

	x.bufferIndex = end
	if !x.consumeIfEndOfLine() {
		x.fail(parseInvalidRequestLineTerminator)
		return
	}

	x.versionMajor, x.versionMinor = major, minor
	x.fail(parseVersionNotSupported)
}

// parseVersionToken accepts "HTTP/d.d" and the major-only "HTTP/d".
func parseVersionToken(token []byte) (major, minor byte, ok bool) {
	if len(token) != 6 && len(token) != 8 {
		return 0, 0, false
	}
	if string(token[:5]) != "HTTP/" || !isDigit(token[5]) {
		return 0, 0, false
	}
	major = token[5] - '0'
	if len(token) == 6 {
		return major, 0, true
	}
	if token[6] != '.' || !isDigit(token[7]) {
		return 0, 0, false
	}
	return major, token[7] - '0', true
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
