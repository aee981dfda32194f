package engine

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func fakeResponse(status int, body string, length int64) *http.Response {
	return &http.Response{
		StatusCode:    status,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: length,
		Header:        make(http.Header),
	}
}

// collector records every event handed to it.
type collector struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (c *collector) handle(ev ProgressEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) all() []ProgressEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ProgressEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collector) terminal() []ProgressEvent {
	var out []ProgressEvent
	for _, ev := range c.all() {
		if ev.Terminal() {
			out = append(out, ev)
		}
	}
	return out
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}
