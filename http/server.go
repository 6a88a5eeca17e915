package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/kettle-http/kettle/filesystem"
	"github.com/kettle-http/kettle/logging"
	"github.com/kettle-http/kettle/pool"
)

// App owns the listening socket, the route table and the worker pool. One
// accepted connection becomes one task: read once, parse, dispatch, write,
// close. There are no read or write deadlines, so a stalled peer occupies
// its worker until the peer goes away.
type App struct {
	router *Router
	pool   *pool.WorkerPool
	log    logging.Logger
	fs     filesystem.Filesystem

	mu       sync.Mutex
	listener net.Listener
}

type Option func(*App)

func WithLogger(log logging.Logger) Option {
	return func(app *App) {
		app.log = log
	}
}

// WithWorkers overrides the worker count, which defaults to twice the
// detected hardware parallelism.
func WithWorkers(count int) Option {
	return func(app *App) {
		app.pool = pool.New(count)
	}
}

func WithFilesystem(fs filesystem.Filesystem) Option {
	return func(app *App) {
		app.fs = fs
	}
}

func NewApp(opts ...Option) *App {
	app := &App{
		router: NewRouter(),
		log:    logging.Nop(),
		fs:     filesystem.NewLocalFileSystem(),
	}

	for _, opt := range opts {
		opt(app)
	}

	if app.pool == nil {
		app.pool = pool.New(2 * runtime.NumCPU())
	}

	return app
}

// Get registers handler for path. The route table is method agnostic: a
// later Post on the same path overwrites this handler.
func (app *App) Get(path string, handler Handler) {
	app.router.Register(path, handler)
}

// Post registers handler for path, sharing the table entry with Get.
func (app *App) Post(path string, handler Handler) {
	app.router.Register(path, handler)
}

// Listen binds port with SO_REUSEADDR, runs onStart once the socket is
// listening, then serves the accept loop until Stop closes the listener.
// Socket setup failure is fatal to startup and returned as is; accept
// failures while running are logged and the loop continues. After the loop
// exits the pool drains its queued connections before Listen returns.
func (app *App) Listen(port int, onStart func()) error {
	lc := net.ListenConfig{Control: reuseAddr}

	listener, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		app.log.Error("server socket setup failed", "port", port, "error", err)
		return err
	}

	app.mu.Lock()
	app.listener = listener
	app.mu.Unlock()

	if onStart != nil {
		onStart()
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			app.log.Warn("accept failed", "error", err)
			continue
		}

		id := uuid.NewString()
		app.log.Trace("connection accepted", "conn", id, "remote", conn.RemoteAddr().String())

		if err := app.pool.Enqueue(func() {
			app.handle(id, conn)
		}); err != nil {
			app.log.Error("connection dropped", "conn", id, "error", err)
			conn.Close()
		}
	}

	app.pool.Shutdown()
	app.log.Info("server stopped", "port", port)
	return nil
}

// Addr reports the bound listener address, or nil before Listen has bound
// one. With port 0 the OS picks the port; Addr is how callers learn it.
func (app *App) Addr() net.Addr {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.listener == nil {
		return nil
	}
	return app.listener.Addr()
}

// Stop closes the listening socket. The blocked Accept then fails, the
// accept loop exits and Listen drains the pool before returning.
func (app *App) Stop() {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.listener != nil {
		app.listener.Close()
		app.listener = nil
	}
}

func (app *App) handle(id string, conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, DefaultReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		app.log.Warn("read failed", "conn", id, "error", err)
		return
	}

	// EOF before any bytes is not a failure: the empty buffer goes through
	// the degraded parse and the peer still gets a 404.
	var req Request
	req.Parse(buf[:n])

	res := NewResponse().WithFilesystem(app.fs)
	res.StatusCode = StatusNotFound

	app.router.Dispatch(&req, res)

	if res.Body == "" {
		res.Status(StatusNotFound).Send("Not Found")
	}

	if _, err := conn.Write(res.Serialize()); err != nil {
		app.log.Warn("write failed", "conn", id, "error", err)
		return
	}

	app.log.Debug("request served", "conn", id, "method", req.Method, "path", req.Path, "status", res.StatusCode)
}

// reuseAddr sets SO_REUSEADDR before bind, so restarts do not trip over
// sockets lingering in TIME_WAIT.
func reuseAddr(network, address string, c syscall.RawConn) error {
	var sockErr error
	if err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
