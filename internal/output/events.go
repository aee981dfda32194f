package output

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/tanq16/segfetch/internal/engine"
)

// EventPrinter writes each event as a JSON wire tuple on its own line:
// [index, active, url, value].
type EventPrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewEventPrinter(w io.Writer) *EventPrinter {
	return &EventPrinter{enc: json.NewEncoder(w)}
}

func (p *EventPrinter) Print(ev engine.ProgressEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enc.Encode(ev.Wire())
}
