package cadente

// HTTP status codes were stolen from net/http.
const (
	StatusContinue           = 100
	StatusSwitchingProtocols = 101

	StatusOK                   = 200
	StatusCreated              = 201
	StatusAccepted             = 202
	StatusNonAuthoritativeInfo = 203
	StatusNoContent            = 204
	StatusResetContent         = 205
	StatusPartialContent       = 206

	StatusMultipleChoices   = 300
	StatusMovedPermanently  = 301
	StatusFound             = 302
	StatusSeeOther          = 303
	StatusNotModified       = 304
	StatusUseProxy          = 305
	StatusTemporaryRedirect = 307

	StatusBadRequest                   = 400
	StatusUnauthorized                 = 401
	StatusPaymentRequired              = 402
	StatusForbidden                    = 403
	StatusNotFound                     = 404
	StatusMethodNotAllowed             = 405
	StatusNotAcceptable                = 406
	StatusProxyAuthRequired            = 407
	StatusRequestTimeout               = 408
	StatusConflict                     = 409
	StatusGone                         = 410
	StatusLengthRequired               = 411
	StatusPreconditionFailed           = 412
	StatusRequestEntityTooLarge        = 413
	StatusRequestURITooLong            = 414
	StatusUnsupportedMediaType         = 415
	StatusRequestedRangeNotSatisfiable = 416
	StatusExpectationFailed            = 417

	StatusInternalServerError     = 500
	StatusNotImplemented          = 501
	StatusBadGateway              = 502
	StatusServiceUnavailable      = 503
	StatusGatewayTimeout          = 504
	StatusHTTPVersionNotSupported = 505
)

var statusMessages = map[int][]byte{
	StatusContinue:           []byte("Continue"),
	StatusSwitchingProtocols: []byte("Switching Protocols"),

	StatusOK:                   []byte("OK"),
	StatusCreated:              []byte("Created"),
	StatusAccepted:             []byte("Accepted"),
	StatusNonAuthoritativeInfo: []byte("Non-Authoritative Information"),
	StatusNoContent:            []byte("No Content"),
	StatusResetContent:         []byte("Reset Content"),
	StatusPartialContent:       []byte("Partial Content"),

	StatusMultipleChoices:   []byte("Multiple Choices"),
	StatusMovedPermanently:  []byte("Moved Permanently"),
	StatusFound:             []byte("Found"),
	StatusSeeOther:          []byte("See Other"),
	StatusNotModified:       []byte("Not Modified"),
	StatusUseProxy:          []byte("Use Proxy"),
	StatusTemporaryRedirect: []byte("Temporary Redirect"),

	StatusBadRequest:                   []byte("Bad Request"),
	StatusUnauthorized:                 []byte("Unauthorized"),
	StatusPaymentRequired:              []byte("Payment Required"),
	StatusForbidden:                    []byte("Forbidden"),
	StatusNotFound:                     []byte("Not Found"),
	StatusMethodNotAllowed:             []byte("Method Not Allowed"),
	StatusNotAcceptable:                []byte("Not Acceptable"),
	StatusProxyAuthRequired:            []byte("Proxy Authentication Required"),
	StatusRequestTimeout:               []byte("Request Timeout"),
	StatusConflict:                     []byte("Conflict"),
	StatusGone:                         []byte("Gone"),
	StatusLengthRequired:               []byte("Length Required"),
	StatusPreconditionFailed:           []byte("Precondition Failed"),
	StatusRequestEntityTooLarge:        []byte("Request Entity Too Large"),
	StatusRequestURITooLong:            []byte("Request URI Too Long"),
	StatusUnsupportedMediaType:         []byte("Unsupported Media Type"),
	StatusRequestedRangeNotSatisfiable: []byte("Requested Range Not Satisfiable"),
	StatusExpectationFailed:            []byte("Expectation Failed"),

	StatusInternalServerError:     []byte("Internal Server Error"),
	StatusNotImplemented:          []byte("Not Implemented"),
	StatusBadGateway:              []byte("Bad Gateway"),
	StatusServiceUnavailable:      []byte("Service Unavailable"),
	StatusGatewayTimeout:          []byte("Gateway Timeout"),
	StatusHTTPVersionNotSupported: []byte("HTTP Version Not Supported"),
}

// statusMessage returns the standard reason phrase for the given status code
// or nil if the code is unknown.
func statusMessage(statusCode int) []byte {
	return statusMessages[statusCode]
}

// StatusMessage returns the standard reason phrase for the given status code.
//
// An empty string is returned for unknown status codes.
func StatusMessage(statusCode int) string {
	return string(statusMessage(statusCode))
}
