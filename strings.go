package cadente

var (
	defaultServerName  = []byte("cadente")
	defaultContentType = []byte("text/plain; charset=utf-8")
)

var (
	strCRLF       = []byte("\r\n")
	strHTTP10     = []byte("HTTP/1.0")
	strColonSpace = []byte(": ")

	strHTTP11Space = []byte("HTTP/1.1 ")

	strConnection       = []byte("Connection")
	strContentLength    = []byte("Content-Length")
	strContentType      = []byte("Content-Type")
	strContentEncoding  = []byte("Content-Encoding")
	strAcceptEncoding   = []byte("Accept-Encoding")
	strExpect           = []byte("Expect")
	strServer           = []byte("Server")
	strTransferEncoding = []byte("Transfer-Encoding")
	strVary             = []byte("Vary")

	strTextHTML = []byte("text/html")

	strClose       = []byte("close")
	strChunked     = []byte("chunked")
	str100Continue = []byte("100-continue")

	strGzip    = []byte("gzip")
	strBr      = []byte("br")
	strDeflate = []byte("deflate")
	strZstd    = []byte("zstd")

	strContinueLine = []byte("HTTP/1.1 100 Continue\r\n\r\n")

	strChunkTerminator = []byte("0\r\n\r\n")
)
