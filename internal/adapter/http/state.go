package http

// State is the exchange state machine position. Exactly one state is active
// at a time.
type State uint8

const (
	stateStart State = iota
	stateParseMethod
	stateParsePath
	stateParsePathContents
	stateParseQuery
	stateParseVersion
	stateParseHeader
	stateParseHeaderName
	stateParseHeaderValue
	stateParseBody
	stateRequest
	stateResponse
	stateSent
	stateReadEOF
	stateReadMaxBuffer
	stateError
)

var stateNames = [...]string{
	stateStart:             "$START",
	stateParseMethod:       "$PARSE_METHOD",
	stateParsePath:         "$PARSE_PATH",
	stateParsePathContents: "$PARSE_PATH_CONTENTS",
	stateParseQuery:        "$PARSE_QUERY",
	stateParseVersion:      "$PARSE_VERSION",
	stateParseHeader:       "$PARSE_HEADER",
	stateParseHeaderName:   "$PARSE_HEADER_NAME",
	stateParseHeaderValue:  "$PARSE_HEADER_VALUE",
	stateParseBody:         "$PARSE_BODY",
	stateRequest:           "$REQUEST",
	stateResponse:          "$RESPONSE",
	stateSent:              "$SENT",
	stateReadEOF:           "$READ_EOF",
	stateReadMaxBuffer:     "$READ_MAX_BUFFER",
	stateError:             "$ERROR",
}

// String returns the symbolic state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "$UNKNOWN"
}

// parseStatus is the outcome of parsing the current request. Once it leaves
// parseNormal it stays put until the exchange is reset for the next request.
type parseStatus uint8

const (
	parseNormal parseStatus = iota
	parseEOF
	parseUnexpectedEOF
	parseInvalidMethod
	parseInvalidTarget
	parseInvalidProtocol
	parseInvalidRequestLineTerminator
	parseInvalidHeader
	parseInvalidContentLength
	parseMissingHost
	parseURITooLong
	parseHeadersTooLarge
	parseNotImplemented
	parseVersionNotSupported
)

var parseStatusNames = [...]string{
	parseNormal:                       "NORMAL",
	parseEOF:                          "EOF",
	parseUnexpectedEOF:                "UNEXPECTED_EOF",
	parseInvalidMethod:                "INVALID_METHOD",
	parseInvalidTarget:                "INVALID_TARGET",
	parseInvalidProtocol:              "INVALID_PROTOCOL",
	parseInvalidRequestLineTerminator: "INVALID_REQUEST_LINE_TERMINATOR",
	parseInvalidHeader:                "INVALID_HEADER",
	parseInvalidContentLength:         "INVALID_CONTENT_LENGTH",
	parseMissingHost:                  "MISSING_HOST",
	parseURITooLong:                   "URI_TOO_LONG",
	parseHeadersTooLarge:              "HEADERS_TOO_LARGE",
	parseNotImplemented:               "NOT_IMPLEMENTED",
	parseVersionNotSupported:          "VERSION_NOT_SUPPORTED",
}

func (p parseStatus) String() string {
	if int(p) < len(parseStatusNames) {
		return parseStatusNames[p]
	}
	return "UNKNOWN"
}

// isError reports whether parsing failed in a way that gets a response.
func (p parseStatus) isError() bool {
	return p > parseUnexpectedEOF
}

// errorResponse maps a failed parse to its status code and fixed body.
func (p parseStatus) errorResponse() (int, string) {
	switch p {
	case parseInvalidMethod, parseInvalidTarget, parseInvalidProtocol:
		return 400, "Invalid request line.\n"
	case parseInvalidRequestLineTerminator:
		return 400, "Invalid line terminator.\n"
	case parseInvalidHeader, parseInvalidContentLength:
		return 400, "Invalid request headers.\n"
	case parseMissingHost:
		return 400, "Missing Host header.\n"
	case parseURITooLong:
		return 414, ""
	case parseHeadersTooLarge:
		return 431, ""
	case parseNotImplemented:
		return 501, "Not Implemented\n"
	case parseVersionNotSupported:
		return 505, "Supported versions: HTTP/1.1\n"
	}
	return 500, "Internal Server Error\n"
}
