package engine

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tanq16/segfetch/internal/utils"
)

type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in-progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Segment is one independently fetchable unit of a job. Index and URL never
// change; Status and the byte counters belong to the worker holding it.
type Segment struct {
	Index           int
	URL             string
	Path            string
	Status          Status
	BytesDownloaded int64
	TotalBytes      int64 // -1 when the server did not declare a length
}

// Percent reports downloaded/total as 0-100. ok is false when total is unknown.
func Percent(downloaded, total int64) (float64, bool) {
	if total <= 0 {
		return 0, false
	}
	pct := float64(downloaded) / float64(total) * 100
	return min(pct, 100), true
}

type Job struct {
	ID          string
	Name        string
	SavePath    string
	TempDir     string
	Concurrency int
	StartTime   time.Time

	mu       sync.RWMutex
	segments []Segment
	// highest Active percent published per segment
	reported []float64
}

func newJob(name string, urls []string, savePath, tempDirName string, concurrency int) *Job {
	tempDir := filepath.Join(savePath, tempDirName)
	job := &Job{
		ID:          uuid.NewString(),
		Name:        name,
		SavePath:    savePath,
		TempDir:     tempDir,
		Concurrency: concurrency,
		segments:    make([]Segment, len(urls)),
		reported:    make([]float64, len(urls)),
	}
	for i, u := range urls {
		job.segments[i] = Segment{
			Index:      i,
			URL:        u,
			Path:       filepath.Join(tempDir, utils.SegmentFileName(i)),
			Status:     StatusPending,
			TotalBytes: -1,
		}
	}
	return job
}

func (j *Job) Len() int {
	return len(j.segments)
}

func (j *Job) segment(index int) Segment {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.segments[index]
}

func (j *Job) setStatus(index int, status Status) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.segments[index].Status = status
}

func (j *Job) finish(index int, status Status, written int64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.segments[index].Status = status
	if status == StatusCompleted {
		j.segments[index].BytesDownloaded = written
	}
}

// setProgress records the byte counters and returns the percent to publish,
// if any. Published percents never go down for a segment, even when a retry
// restarts the download from zero.
func (j *Job) setProgress(index int, downloaded, total int64) (float64, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.segments[index].BytesDownloaded = downloaded
	j.segments[index].TotalBytes = total
	pct, ok := Percent(downloaded, total)
	if !ok || pct < j.reported[index] {
		return 0, false
	}
	j.reported[index] = pct
	return pct, true
}

// cancelPending marks every segment that never started as Cancelled.
func (j *Job) cancelPending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for i := range j.segments {
		if j.segments[i].Status == StatusPending {
			j.segments[i].Status = StatusCancelled
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the segment arena.
func (j *Job) Snapshot() []Segment {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Segment, len(j.segments))
	copy(out, j.segments)
	return out
}

func (j *Job) Counts() map[Status]int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	counts := make(map[Status]int)
	for _, s := range j.segments {
		counts[s.Status]++
	}
	return counts
}
