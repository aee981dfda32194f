package engine

// Handler consumes progress events. It is always called from a single
// goroutine, one event at a time.
type Handler func(ProgressEvent)

// sink fans events from every worker into one Handler. Producers block when
// the buffer is full so no event is ever dropped.
type sink struct {
	ch   chan ProgressEvent
	done chan struct{}
}

func newSink(buffer int, handler Handler) *sink {
	s := &sink{
		ch:   make(chan ProgressEvent, buffer),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for ev := range s.ch {
			if handler != nil {
				handler(ev)
			}
		}
	}()
	return s
}

func (s *sink) publish(ev ProgressEvent) {
	s.ch <- ev
}

// close must only be called once every producer has returned. It blocks
// until the handler has seen every published event.
func (s *sink) close() {
	close(s.ch)
	<-s.done
}
