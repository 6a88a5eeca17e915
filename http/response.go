package http

import (
	"strconv"
	"strings"

	"github.com/kettle-http/kettle/filesystem"
)

// Response accumulates status, headers and body, then serializes to wire
// bytes exactly once. Handlers mutate it through the chainable setters.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string

	fs filesystem.Filesystem
}

func NewResponse() *Response {
	return &Response{
		StatusCode: StatusOK,
		Headers:    make(map[string]string),
		fs:         filesystem.NewLocalFileSystem(),
	}
}

// WithFilesystem swaps the file access used by SendFile.
func (res *Response) WithFilesystem(fs filesystem.Filesystem) *Response {
	res.fs = fs
	return res
}

func (res *Response) Status(code int) *Response {
	res.StatusCode = code
	return res
}

func (res *Response) SetHeader(key, value string) *Response {
	res.Headers[key] = value
	return res
}

// Send sets a plain-text body with matching Content-Length.
func (res *Response) Send(body string) *Response {
	res.Body = body
	res.SetHeader("Content-Length", strconv.Itoa(len(res.Body)))
	res.SetHeader("Content-Type", "text/plain")
	return res
}

// Json sets an application/json body. The caller supplies already
// serialized JSON text; no marshaling happens here.
func (res *Response) Json(body string) *Response {
	res.Body = body
	res.SetHeader("Content-Length", strconv.Itoa(len(res.Body)))
	res.SetHeader("Content-Type", "application/json")
	return res
}

// SendFile reads the whole file at path into the body as text/html. When
// the file cannot be read the body becomes "File not found" and the status
// code is left untouched.
func (res *Response) SendFile(path string) *Response {
	content, err := res.fs.ReadFile(path)
	if err != nil {
		res.Body = "File not found"
	} else {
		res.Body = string(content)
	}
	res.SetHeader("Content-Type", "text/html")
	res.SetHeader("Content-Length", strconv.Itoa(len(res.Body)))
	return res
}

// Serialize renders the response as an HTTP/1.1 message. Header order is
// not specified.
func (res *Response) Serialize() []byte {
	var b strings.Builder

	b.WriteString("HTTP/1.1 ")
	b.WriteString(strconv.Itoa(res.StatusCode))
	b.WriteString(" ")
	b.WriteString(StatusText(res.StatusCode))
	b.WriteString("\r\n")

	for key, value := range res.Headers {
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\r\n")
	}

	b.WriteString("\r\n")
	b.WriteString(res.Body)

	return []byte(b.String())
}
