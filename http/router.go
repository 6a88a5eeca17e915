package http

import "sync"

// Router maps exact request paths to handlers. Registration overwrites any
// earlier handler for the same path, regardless of method.
type Router struct {
	mu     sync.Mutex
	routes map[string]Handler
}

func NewRouter() *Router {
	return &Router{
		routes: make(map[string]Handler),
	}
}

func (router *Router) Register(path string, handler Handler) {
	router.mu.Lock()
	defer router.mu.Unlock()

	router.routes[path] = handler
}

// Dispatch looks up the handler for req.Path and invokes it while holding
// the route lock. The lock covers the whole handler run, so no two
// handlers execute concurrently, whatever their paths. An unregistered
// path leaves res untouched.
func (router *Router) Dispatch(req *Request, res *Response) {
	router.mu.Lock()
	defer router.mu.Unlock()

	if handler, found := router.routes[req.Path]; found {
		handler.Serve(req, res)
	}
}
