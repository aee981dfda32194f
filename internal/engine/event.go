package engine

import "fmt"

type Phase int

const (
	PhaseActive Phase = iota
	PhaseFailed
	PhaseCancelled
	PhaseCompleted
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	case PhaseCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Terminal values carried by non-Active events.
const (
	CodeCompleted float64 = 100
	CodeFailed    float64 = -1
	CodeCancelled float64 = 0
)

// ProgressEvent is emitted zero or more times per segment while Active and
// exactly once when the segment reaches a terminal phase. Value is a percent
// while Active, otherwise one of the Code constants.
type ProgressEvent struct {
	Index int
	Phase Phase
	URL   string
	Value float64
}

func (e ProgressEvent) Terminal() bool {
	return e.Phase != PhaseActive
}

// Wire returns the host tuple [index, active 0|1, url, value].
func (e ProgressEvent) Wire() []any {
	active := 0
	if e.Phase == PhaseActive {
		active = 1
	}
	return []any{e.Index, active, e.URL, e.Value}
}

func (e ProgressEvent) String() string {
	return fmt.Sprintf("[%d %s %s %.1f]", e.Index, e.Phase, e.URL, e.Value)
}

func activeEvent(seg Segment, pct float64) ProgressEvent {
	return ProgressEvent{Index: seg.Index, Phase: PhaseActive, URL: seg.URL, Value: pct}
}

func cancelledEvent(seg Segment) ProgressEvent {
	return ProgressEvent{Index: seg.Index, Phase: PhaseCancelled, URL: seg.URL, Value: CodeCancelled}
}
