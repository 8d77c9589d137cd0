/*
Package cadente provides a managed HTTP/1.1 connection listener and
wire-protocol engine operating directly on socket byte streams.

Cadente accepts raw TCP/TLS connections, parses HTTP/1.1 requests straight
from the receive buffer, hands a request/response context to an application
handler and serializes the response back onto the wire, including:

	-  Keep-alive connection reuse with automatic body draining.
	-  Chunked transfer-encoding for requests and responses.
	-  Expect: 100-continue interim responses.
	-  Backpressure-aware hand-off to an embedding engine via a bounded
	   pending-context queue.
	-  Pooled receive and serialization buffers for allocation-free hot paths.

The engine deliberately supports a single outstanding request per connection.
Request pipelining, HTTP/2, HTTP/3 and trailer headers are unsupported.
*/
package cadente
