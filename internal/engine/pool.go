package engine

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// runPool downloads every segment of job with at most job.Concurrency
// segments in flight. Segments are claimed in index order; completion order
// is not. It returns once every segment holds a terminal status.
func runPool(job *Job, fetcher Fetcher, sig *CancelSignal, out *sink) {
	queue := make(chan int, job.Len())
	for i := 0; i < job.Len(); i++ {
		queue <- i
	}
	close(queue)

	workers := max(1, min(job.Concurrency, job.Len()))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range queue {
				processSegment(job, fetcher, sig, out, index)
			}
		}()
	}
	wg.Wait()
}

func processSegment(job *Job, fetcher Fetcher, sig *CancelSignal, out *sink, index int) {
	seg := job.segment(index)
	if sig.Cancelled() {
		job.setStatus(index, StatusCancelled)
		out.publish(cancelledEvent(seg))
		return
	}
	job.setStatus(index, StatusInProgress)
	progress := func(downloaded, total int64) {
		if pct, ok := job.setProgress(index, downloaded, total); ok {
			out.publish(activeEvent(seg, pct))
		}
	}
	res := safeFetch(fetcher, sig, seg, progress)
	if !res.Status.Terminal() {
		res.Status = StatusFailed
	}
	job.finish(index, res.Status, res.Bytes)
	out.publish(res.Event())
}

// safeFetch keeps a misbehaving Fetcher from taking down sibling workers.
func safeFetch(fetcher Fetcher, sig *CancelSignal, seg Segment, progress ProgressFunc) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("op", "engine/pool").Int("index", seg.Index).Msgf("Fetcher panicked: %v", r)
			res = Result{Index: seg.Index, URL: seg.URL, Status: StatusFailed, Err: fmt.Errorf("fetcher panic: %v", r)}
		}
	}()
	res = fetcher.Fetch(sig, seg, progress)
	res.Index, res.URL = seg.Index, seg.URL
	return res
}
