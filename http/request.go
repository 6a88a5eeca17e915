package http

import (
	"fmt"
	"strconv"
	"strings"
)

// Request is the parsed form of the bytes read from a connection. It is
// built once per connection and not mutated afterwards; the worker handling
// the connection is its only owner.
type Request struct {
	Method   string
	URL      string
	Protocol string
	Host     string
	Port     int
	Path     string
	Body     string
	Headers  map[string]string
	Query    map[string]string
}

// Parse fills req from one raw request buffer. Malformed input degrades to
// a partially populated request; Parse never fails. Missing fields stay at
// their zero values and the request is still dispatched.
func (req *Request) Parse(raw []byte) {
	req.Headers = make(map[string]string)
	req.Query = make(map[string]string)

	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	parts := strings.Fields(lines[0])
	if len(parts) > 0 {
		req.Method = parts[0]
	}
	if len(parts) > 1 {
		req.URL = parts[1]
	}

	req.extractURLComponents(req.URL)

	if idx := strings.Index(req.URL, "?"); idx >= 0 {
		req.Path = req.URL[:idx]
		req.parseQueryParams(req.URL[idx+1:])
	} else {
		req.Path = req.URL
	}

	// Headers run up to the first blank line. A line without a colon is
	// skipped; a repeated key keeps its last value.
	i := 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			i++
			break
		}
		if sep := strings.Index(line, ":"); sep >= 0 {
			key := strings.TrimSpace(line[:sep])
			value := strings.TrimSpace(line[sep+1:])
			req.Headers[key] = value
		}
	}

	if i < len(lines) {
		body := strings.Join(lines[i:], "\n")
		req.Body = strings.TrimSuffix(body, "\n")
	}
}

func (req *Request) extractURLComponents(url string) {
	if strings.HasPrefix(url, "https://") {
		req.Protocol = "HTTPS"
		req.Port = 443
	} else {
		req.Protocol = "HTTP"
		req.Port = 80
	}

	hostStart := 0
	if idx := strings.Index(url, "://"); idx >= 0 {
		hostStart = idx + 3
	}
	rest := url[hostStart:]

	portStart := strings.Index(rest, ":")
	pathStart := strings.Index(rest, "/")

	if portStart >= 0 && (pathStart < 0 || portStart < pathStart) {
		req.Host = rest[:portStart]
		portEnd := len(rest)
		if pathStart >= 0 {
			portEnd = pathStart
		}
		// An explicit :port overrides the scheme default. Garbage after
		// the colon keeps the default, in line with the no-error policy.
		if port, err := strconv.Atoi(rest[portStart+1 : portEnd]); err == nil {
			req.Port = port
		}
	} else if pathStart >= 0 {
		req.Host = rest[:pathStart]
	} else {
		req.Host = rest
	}
}

func (req *Request) parseQueryParams(queryString string) {
	for _, pair := range strings.Split(queryString, "&") {
		sep := strings.Index(pair, "=")
		if sep < 0 {
			continue
		}
		key := strings.TrimSpace(pair[:sep])
		value := strings.TrimSpace(pair[sep+1:])
		req.Query[key] = value
	}
}

// Header returns the value for key, or "" when absent.
func (req *Request) Header(key string) string {
	return req.Headers[key]
}

// QueryParam returns the query value for key, or "" when absent.
func (req *Request) QueryParam(key string) string {
	return req.Query[key]
}

func (req *Request) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Method: %s\n", req.Method)
	fmt.Fprintf(&b, "Protocol: %s\n", req.Protocol)
	fmt.Fprintf(&b, "Host: %s\n", req.Host)
	fmt.Fprintf(&b, "Port: %d\n", req.Port)
	fmt.Fprintf(&b, "Path: %s\n", req.Path)

	b.WriteString("Headers:\n")
	for key, value := range req.Headers {
		fmt.Fprintf(&b, "  %s: %s\n", key, value)
	}

	b.WriteString("Query Parameters:\n")
	for key, value := range req.Query {
		fmt.Fprintf(&b, "  %s: %s\n", key, value)
	}

	fmt.Fprintf(&b, "Body:\n%s\n", req.Body)
	return b.String()
}
