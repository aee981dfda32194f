package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/segfetch/internal/utils"
)

var (
	ErrNoJob      = errors.New("no job configured")
	ErrNotStarted = errors.New("job not started")
	ErrInvalidJob = errors.New("invalid job")
)

const defaultEventBuffer = 64

type Options struct {
	HTTPClientConfig utils.HTTPClientConfig
	Retry            RetryPolicy
	ChunkSize        int
	TempDirName      string
	// EventBuffer is the number of events that may queue before workers block.
	EventBuffer int
	// Fetcher replaces the HTTP fetcher built from HTTPClientConfig.
	Fetcher Fetcher
}

func DefaultOptions() Options {
	return Options{
		Retry:       DefaultRetryPolicy(),
		ChunkSize:   utils.DefaultChunkSize,
		TempDirName: utils.TempDirName,
		EventBuffer: defaultEventBuffer,
	}
}

type Summary struct {
	JobID     string
	Name      string
	Total     int
	Completed int
	Failed    int
	Cancelled int
	// Bytes counts data written by completed segments.
	Bytes   int64
	Elapsed time.Duration
}

func (s Summary) Success() bool {
	return s.Total > 0 && s.Completed == s.Total
}

func summarize(job *Job) Summary {
	counts := job.Counts()
	s := Summary{
		JobID:     job.ID,
		Name:      job.Name,
		Total:     job.Len(),
		Completed: counts[StatusCompleted],
		Failed:    counts[StatusFailed],
		Cancelled: counts[StatusCancelled],
	}
	for _, seg := range job.Snapshot() {
		if seg.Status == StatusCompleted {
			s.Bytes += seg.BytesDownloaded
		}
	}
	if !job.StartTime.IsZero() {
		s.Elapsed = time.Since(job.StartTime)
	}
	return s
}

type run struct {
	job     *Job
	sig     *CancelSignal
	started bool
	done    chan struct{}
	summary Summary
}

// Controller owns at most one job at a time.
type Controller struct {
	opts    Options
	handler Handler
	fetcher Fetcher

	mu      sync.Mutex
	current *run
}

func NewController(opts Options, handler Handler) *Controller {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = utils.DefaultChunkSize
	}
	if opts.TempDirName == "" {
		opts.TempDirName = utils.TempDirName
	}
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		client := utils.NewSegfetchHTTPClient(opts.HTTPClientConfig)
		fetcher = NewHTTPFetcher(client, opts.ChunkSize, opts.Retry)
	}
	return &Controller{opts: opts, handler: handler, fetcher: fetcher}
}

// Configure builds a fresh job without starting it. An active job is
// cancelled and drained first.
func (c *Controller) Configure(name string, urls []string, savePath string, concurrency int) error {
	if concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidJob, concurrency)
	}
	if savePath == "" {
		return fmt.Errorf("%w: save path is empty", ErrInvalidJob)
	}
	if len(urls) == 0 {
		return fmt.Errorf("%w: no segment urls", ErrInvalidJob)
	}
	if c.Active() {
		log.Warn().Str("op", "engine/controller").Msg("Replacing active job, cancelling it first")
	}
	c.Cancel()
	r := &run{
		job:  newJob(name, urls, savePath, c.opts.TempDirName, concurrency),
		sig:  NewCancelSignal(),
		done: make(chan struct{}),
	}
	c.mu.Lock()
	c.current = r
	c.mu.Unlock()
	log.Debug().Str("op", "engine/controller").Str("job", r.job.ID).Msgf("Configured %s with %d segments", name, len(urls))
	return nil
}

// Start launches the worker pool and returns immediately. It does nothing
// when no job is configured or the job was already started or cancelled.
func (c *Controller) Start() {
	c.mu.Lock()
	r := c.current
	if r == nil || r.started {
		c.mu.Unlock()
		return
	}
	r.started = true
	r.job.StartTime = time.Now()
	c.mu.Unlock()

	log.Info().Str("op", "engine/controller").Str("job", r.job.ID).Msgf("Starting %s with %d workers", r.job.Name, r.job.Concurrency)
	go func() {
		out := newSink(c.opts.EventBuffer, c.handler)
		runPool(r.job, c.fetcher, r.sig, out)
		out.close()
		r.sig.release()
		r.summary = summarize(r.job)
		log.Info().Str("op", "engine/controller").Str("job", r.job.ID).Msgf("Finished %s: %d completed, %d failed, %d cancelled", r.job.Name, r.summary.Completed, r.summary.Failed, r.summary.Cancelled)
		close(r.done)
	}()
}

// Cancel raises the cancellation flag and blocks until every worker has
// returned and every event has been delivered. No event is delivered after
// Cancel returns. It must not be called from the event handler.
func (c *Controller) Cancel() {
	c.mu.Lock()
	r := c.current
	if r == nil {
		c.mu.Unlock()
		return
	}
	r.sig.Cancel()
	started := r.started
	r.started = true
	c.mu.Unlock()

	if !started {
		n := r.job.cancelPending()
		r.sig.release()
		r.summary = summarize(r.job)
		log.Debug().Str("op", "engine/controller").Str("job", r.job.ID).Msgf("Cancelled %d segments before start", n)
		close(r.done)
		return
	}
	<-r.done
}

// Wait blocks until the current job has finished or been cancelled.
func (c *Controller) Wait() (Summary, error) {
	c.mu.Lock()
	r := c.current
	if r == nil {
		c.mu.Unlock()
		return Summary{}, ErrNoJob
	}
	if !r.started {
		c.mu.Unlock()
		return Summary{}, ErrNotStarted
	}
	c.mu.Unlock()
	<-r.done
	return r.summary, nil
}

// Done is closed when the current job finishes. It returns nil without a job.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.done
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	r := c.current
	c.mu.Unlock()
	if r == nil {
		return false
	}
	select {
	case <-r.done:
		return false
	default:
		c.mu.Lock()
		defer c.mu.Unlock()
		return r.started
	}
}

// Job returns the current job, or nil.
func (c *Controller) Job() *Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.job
}
