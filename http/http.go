package http

const (
	MethodGet  = "GET"
	MethodPost = "POST"

	// DefaultReadBufferSize bounds the single read a connection gets.
	// Requests whose headers+body exceed it arrive truncated; that is a
	// documented limitation of the one-read model, not an error path.
	DefaultReadBufferSize = 1024
)

// Handler maps a parsed request onto a response. Implementations run on a
// worker, one connection at a time.
type Handler interface {
	Serve(req *Request, res *Response)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(req *Request, res *Response)

func (f HandlerFunc) Serve(req *Request, res *Response) {
	f(req, res)
}
