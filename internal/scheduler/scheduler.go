package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/segfetch/internal/engine"
	"github.com/tanq16/segfetch/internal/output"
	"github.com/tanq16/segfetch/internal/utils"
)

var ErrJobsFailed = errors.New("one or more jobs did not complete")

type Config struct {
	Workers     int
	Connections int
	Options     engine.Options
	// JSON prints wire tuples instead of the live display.
	JSON bool
	Out  io.Writer
}

type scheduler struct {
	cfg     Config
	mgr     *output.Manager
	printer *output.EventPrinter

	mu          sync.Mutex
	running     map[*engine.Controller]struct{}
	interrupted atomic.Bool
}

// Run downloads every job, cfg.Workers jobs at a time. SIGINT and SIGTERM
// cancel running jobs and skip the ones not yet started.
func Run(jobs []utils.SegmentJob, cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, jobs, cfg)
}

func RunContext(ctx context.Context, jobs []utils.SegmentJob, cfg Config) error {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Connections < 1 {
		cfg.Connections = utils.DefaultConnections
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	s := &scheduler{cfg: cfg, running: make(map[*engine.Controller]struct{})}
	if cfg.JSON {
		s.printer = output.NewEventPrinter(cfg.Out)
	} else {
		s.mgr = output.NewManagerWithWriter(cfg.Out)
		s.mgr.StartDisplay()
	}

	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Warn().Str("op", "scheduler/scheduler").Msg("Interrupted, cancelling running jobs")
			s.cancelAll()
		case <-stopWatch:
		}
	}()

	jobCh := make(chan utils.SegmentJob, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	var failed atomic.Int32
	var wg sync.WaitGroup
	for w, n := 0, min(cfg.Workers, max(len(jobs), 1)); w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				if err := s.process(job); err != nil {
					failed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	close(stopWatch)
	if s.mgr != nil {
		s.mgr.StopDisplay()
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%w: %d of %d", ErrJobsFailed, n, len(jobs))
	}
	return nil
}

func (s *scheduler) process(job utils.SegmentJob) error {
	connections := job.Connections
	if connections <= 0 {
		connections = s.cfg.Connections
	}
	id := 0
	handler := func(ev engine.ProgressEvent) {
		if err := s.printer.Print(ev); err != nil {
			log.Debug().Str("op", "scheduler/scheduler").Msgf("Error writing event: %v", err)
		}
	}
	if s.mgr != nil {
		id = s.mgr.RegisterJob(job.Name, len(job.URLs))
		handler = func(ev engine.ProgressEvent) {
			s.mgr.HandleEvent(id, ev)
		}
	}
	if s.interrupted.Load() {
		return s.fail(id, job.Name, errors.New("skipped after interrupt"))
	}

	ctrl := engine.NewController(s.cfg.Options, handler)
	if err := ctrl.Configure(job.Name, job.URLs, job.SavePath, connections); err != nil {
		return s.fail(id, job.Name, err)
	}
	if s.mgr != nil {
		s.mgr.SetMessage(id, fmt.Sprintf("Downloading %s", job.Name))
	}
	s.track(ctrl)
	ctrl.Start()
	summary, err := ctrl.Wait()
	s.untrack(ctrl)
	if err != nil {
		return s.fail(id, job.Name, err)
	}
	if s.mgr != nil {
		s.mgr.Complete(id, summary)
	}
	if !summary.Success() {
		return fmt.Errorf("%s: %d failed, %d cancelled", job.Name, summary.Failed, summary.Cancelled)
	}
	return nil
}

func (s *scheduler) fail(id int, name string, err error) error {
	log.Error().Str("op", "scheduler/scheduler").Msgf("Job %s: %v", name, err)
	if s.mgr != nil {
		s.mgr.ReportError(id, err)
	}
	return err
}

// track registers ctrl for interrupt handling. A controller tracked after an
// interrupt is cancelled right away so Start becomes a no-op.
func (s *scheduler) track(ctrl *engine.Controller) {
	s.mu.Lock()
	s.running[ctrl] = struct{}{}
	s.mu.Unlock()
	if s.interrupted.Load() {
		ctrl.Cancel()
	}
}

func (s *scheduler) untrack(ctrl *engine.Controller) {
	s.mu.Lock()
	delete(s.running, ctrl)
	s.mu.Unlock()
}

func (s *scheduler) cancelAll() {
	s.interrupted.Store(true)
	s.mu.Lock()
	ctrls := make([]*engine.Controller, 0, len(s.running))
	for ctrl := range s.running {
		ctrls = append(ctrls, ctrl)
	}
	s.mu.Unlock()
	var wg sync.WaitGroup
	for _, ctrl := range ctrls {
		ctrl := ctrl
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctrl.Cancel()
		}()
	}
	wg.Wait()
}
