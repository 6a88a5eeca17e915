package http

import (
	"bufio"
	"bytes"
	"io"
	"net"
	stdhttp "net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kettle-http/kettle/test"
)

func startApp(t *testing.T, app *App) net.Addr {
	t.Helper()

	started := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		if err := app.Listen(0, func() { close(started) }); err != nil {
			t.Errorf("listen: %v", err)
		}
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}

	t.Cleanup(func() {
		app.Stop()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			t.Error("listen did not return after stop")
		}
	})

	return app.Addr()
}

// doRequest writes one raw request and reads until the server closes the
// connection, which it does after every response.
func doRequest(t *testing.T, addr net.Addr, raw string) (*stdhttp.Response, string) {
	t.Helper()

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}

	wire, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	parsed, err := stdhttp.ReadResponse(bufio.NewReader(bytes.NewReader(wire)), nil)
	if err != nil {
		t.Fatalf("parse response: %v\n%s", err, wire)
	}
	body, _ := io.ReadAll(parsed.Body)
	parsed.Body.Close()
	return parsed, string(body)
}

func TestServeRegisteredRoute(t *testing.T) {
	app := NewApp(WithWorkers(4))
	app.Get("/hello", HandlerFunc(func(req *Request, res *Response) {
		res.Send("Hello, World!")
	}))

	addr := startApp(t, app)

	parsed, body := doRequest(t, addr, "GET /hello HTTP/1.1\r\nHost: localhost\r\n\r\n")
	test.Equal(t, 200, parsed.StatusCode)
	test.Equal(t, "Hello, World!", body)
	test.Equal(t, "text/plain", parsed.Header.Get("Content-Type"))
}

func TestServeUnregisteredRouteIs404(t *testing.T) {
	app := NewApp(WithWorkers(2))
	addr := startApp(t, app)

	parsed, body := doRequest(t, addr, "GET /missing HTTP/1.1\r\nHost: localhost\r\n\r\n")
	test.Equal(t, 404, parsed.StatusCode)
	test.Equal(t, "Not Found", body)
}

func TestEmptyHandlerBodyForces404(t *testing.T) {
	app := NewApp(WithWorkers(2))
	app.Get("/silent", HandlerFunc(func(req *Request, res *Response) {
		res.Status(StatusOK)
	}))

	addr := startApp(t, app)

	parsed, body := doRequest(t, addr, "GET /silent HTTP/1.1\r\nHost: localhost\r\n\r\n")
	test.Equal(t, 404, parsed.StatusCode)
	test.Equal(t, "Not Found", body)
}

func TestPostSharesRouteTableWithGet(t *testing.T) {
	app := NewApp(WithWorkers(2))
	app.Get("/submit", HandlerFunc(func(req *Request, res *Response) {
		res.Send("from get")
	}))
	// Same path: last registration wins, method notwithstanding.
	app.Post("/submit", HandlerFunc(func(req *Request, res *Response) {
		res.Send("echo:" + req.Body)
	}))

	addr := startApp(t, app)

	parsed, body := doRequest(t, addr, "GET /submit HTTP/1.1\r\nHost: localhost\r\n\r\npayload")
	test.Equal(t, 200, parsed.StatusCode)
	test.Equal(t, "echo:payload", body)
}

func TestDistinctPathsDoNotOverlap(t *testing.T) {
	app := NewApp(WithWorkers(4))

	var inFlight atomic.Int32
	var overlapped atomic.Bool

	slow := HandlerFunc(func(req *Request, res *Response) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		res.Send("ok")
	})

	app.Get("/left", slow)
	app.Get("/right", slow)

	addr := startApp(t, app)

	results := make(chan int, 2)
	for _, path := range []string{"/left", "/right"} {
		path := path
		go func() {
			parsed, _ := doRequest(t, addr, "GET "+path+" HTTP/1.1\r\nHost: localhost\r\n\r\n")
			results <- parsed.StatusCode
		}()
	}

	for i := 0; i < 2; i++ {
		test.Equal(t, 200, <-results)
	}
	test.True(t, !overlapped.Load(), "handlers for distinct paths overlapped")
}

// Workers have no read deadline: a peer that connects and never writes
// holds its worker until it goes away. With a single worker that stalls
// every later connection.
func TestStalledPeerPinsWorker(t *testing.T) {
	app := NewApp(WithWorkers(1))
	app.Get("/fast", HandlerFunc(func(req *Request, res *Response) {
		res.Send("ok")
	}))

	addr := startApp(t, app)

	stalled, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stalled.Close()

	// Let the silent connection get accepted and claim the only worker.
	time.Sleep(50 * time.Millisecond)

	served := make(chan string, 1)
	go func() {
		_, body := doRequest(t, addr, "GET /fast HTTP/1.1\r\nHost: localhost\r\n\r\n")
		served <- body
	}()

	select {
	case body := <-served:
		t.Fatalf("request served (%q) while the only worker was pinned", body)
	case <-time.After(300 * time.Millisecond):
	}

	stalled.Close()

	select {
	case body := <-served:
		test.Equal(t, "ok", body)
	case <-time.After(2 * time.Second):
		t.Fatal("request not served after the stalled connection closed")
	}
}

// A connection that closes without sending anything still gets an answer:
// the empty buffer parses to an empty path, which is a 404.
func TestEmptyReadStillAnswers404(t *testing.T) {
	app := NewApp(WithWorkers(1))
	addr := startApp(t, app)

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.(*net.TCPConn).CloseWrite(); err != nil {
		t.Fatalf("close write: %v", err)
	}

	wire, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	parsed, err := stdhttp.ReadResponse(bufio.NewReader(bytes.NewReader(wire)), nil)
	if err != nil {
		t.Fatalf("parse response: %v\n%s", err, wire)
	}
	body, _ := io.ReadAll(parsed.Body)
	parsed.Body.Close()

	test.Equal(t, 404, parsed.StatusCode)
	test.Equal(t, "Not Found", string(body))
}

func TestListenFailsWhenPortTaken(t *testing.T) {
	app := NewApp(WithWorkers(1))
	addr := startApp(t, app)

	port := addr.(*net.TCPAddr).Port

	other := NewApp(WithWorkers(1))
	if err := other.Listen(port, nil); err == nil {
		t.Fatal("expected bind failure on occupied port")
	}
}

func TestStopDrainsInFlightWork(t *testing.T) {
	app := NewApp(WithWorkers(2))
	app.Get("/slow", HandlerFunc(func(req *Request, res *Response) {
		time.Sleep(100 * time.Millisecond)
		res.Send("finished")
	}))

	addr := startApp(t, app)

	done := make(chan string, 1)
	go func() {
		_, body := doRequest(t, addr, "GET /slow HTTP/1.1\r\nHost: localhost\r\n\r\n")
		done <- body
	}()

	// Let the connection get accepted and queued before stopping.
	time.Sleep(30 * time.Millisecond)
	app.Stop()

	select {
	case body := <-done:
		test.Equal(t, "finished", body)
	case <-time.After(2 * time.Second):
		t.Fatal("queued connection was abandoned on stop")
	}
}
