package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockHTTPDoer implements github.HTTPDoer for testing.
// Responses are keyed by "METHOD:URL"; a key may hold a queue of responses that
// are served in order, the last one repeating.
type MockHTTPDoer struct {
	responses map[string][]cannedResponse
	errors    map[string]error
	calls     []HTTPCall
	mu        sync.Mutex
}

type cannedResponse struct {
	body   []byte
	status int
}

// HTTPCall records a single HTTP call.
type HTTPCall struct {
	Header http.Header
	Method string
	URL    string
	Body   []byte
}

// NewMockHTTPDoer creates a new MockHTTPDoer.
func NewMockHTTPDoer() *MockHTTPDoer {
	return &MockHTTPDoer{
		responses: make(map[string][]cannedResponse),
		errors:    make(map[string]error),
	}
}

// Do records the request and returns the configured response, or 404.
func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	m.calls = append(m.calls, HTTPCall{
		Method: req.Method,
		URL:    req.URL.String(),
		Header: req.Header.Clone(),
		Body:   body,
	})

	key := req.Method + ":" + req.URL.String()
	if err, ok := m.errors[key]; ok {
		return nil, err
	}

	queue, ok := m.responses[key]
	if !ok || len(queue) == 0 {
		return newResponse(http.StatusNotFound, []byte(`{"message":"Not Found"}`)), nil
	}
	next := queue[0]
	if len(queue) > 1 {
		m.responses[key] = queue[1:]
	}
	return newResponse(next.status, next.body), nil
}

// SetResponse configures the response for a method and URL, replacing any queue.
// body is JSON-encoded unless it is a string or []byte.
func (m *MockHTTPDoer) SetResponse(method, url string, statusCode int, body any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method+":"+url] = []cannedResponse{{status: statusCode, body: encode(body)}}
}

// QueueResponse appends a response to be served after those already queued.
func (m *MockHTTPDoer) QueueResponse(method, url string, statusCode int, body any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := method + ":" + url
	m.responses[key] = append(m.responses[key], cannedResponse{status: statusCode, body: encode(body)})
}

// SetError configures a transport error for a method and URL.
func (m *MockHTTPDoer) SetError(method, url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method+":"+url] = err
}

// Calls returns all recorded HTTP calls.
func (m *MockHTTPDoer) Calls() []HTTPCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]HTTPCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many calls were made to method and URL.
func (m *MockHTTPDoer) CallCount(method, url string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method && c.URL == url {
			n++
		}
	}
	return n
}

func encode(body any) []byte {
	switch b := body.(type) {
	case nil:
		return nil
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	out, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal response body: %v", err))
	}
	return out
}

func newResponse(status int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Body:       io.NopCloser(strings.NewReader(string(body))),
		Header:     make(http.Header),
	}
}
