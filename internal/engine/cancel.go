package engine

import (
	"context"
	"sync/atomic"
)

// CancelSignal is the one piece of state shared by every worker of a job.
// Workers poll Cancelled at their checkpoints; the embedded context lets
// blocked network reads return early so the next checkpoint is reached.
type CancelSignal struct {
	flag   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

func NewCancelSignal() *CancelSignal {
	ctx, cancel := context.WithCancel(context.Background())
	return &CancelSignal{ctx: ctx, cancel: cancel}
}

func (s *CancelSignal) Cancel() {
	if s.flag.CompareAndSwap(false, true) {
		s.cancel()
	}
}

func (s *CancelSignal) Cancelled() bool {
	return s.flag.Load()
}

func (s *CancelSignal) Done() <-chan struct{} {
	return s.ctx.Done()
}

func (s *CancelSignal) Context() context.Context {
	return s.ctx
}

// release frees the context once the job is over without raising the flag.
func (s *CancelSignal) release() {
	s.cancel()
}
