package output

import (
	"bytes"
	"testing"

	"github.com/tanq16/segfetch/internal/engine"
)

func TestEventPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewEventPrinter(&buf)
	events := []engine.ProgressEvent{
		{Index: 0, Phase: engine.PhaseActive, URL: "https://cdn.example.com/0.ts", Value: 37.5},
		{Index: 0, Phase: engine.PhaseCompleted, URL: "https://cdn.example.com/0.ts", Value: engine.CodeCompleted},
		{Index: 4, Phase: engine.PhaseFailed, URL: "https://cdn.example.com/4.ts", Value: engine.CodeFailed},
	}
	for _, ev := range events {
		if err := p.Print(ev); err != nil {
			t.Fatalf("Print: %v", err)
		}
	}
	expected := `[0,1,"https://cdn.example.com/0.ts",37.5]
[0,0,"https://cdn.example.com/0.ts",100]
[4,0,"https://cdn.example.com/4.ts",-1]
`
	if buf.String() != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, buf.String())
	}
}
