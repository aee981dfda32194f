package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tanq16/segfetch/internal/engine"
	"github.com/tanq16/segfetch/internal/utils"
)

type JobOutput struct {
	ID          int
	Name        string
	Status      string
	Message     string
	Total       int
	Completed   int
	Failed      int
	Cancelled   int
	Active      map[int]float64 // segment index -> percent
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	JobName string
	Error   error
	Time    time.Time
}

type Manager struct {
	outputs     map[int]*JobOutput
	mutex       sync.RWMutex
	out         io.Writer
	numLines    int
	maxStreams  int // max active segment lines per job
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
}

func NewManager() *Manager {
	return NewManagerWithWriter(os.Stdout)
}

func NewManagerWithWriter(w io.Writer) *Manager {
	return &Manager{
		outputs:     make(map[int]*JobOutput),
		out:         w,
		maxStreams:  6,
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
	}
}

func (m *Manager) RegisterJob(name string, total int) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jobCount++
	m.outputs[m.jobCount] = &JobOutput{
		ID:          m.jobCount,
		Name:        name,
		Status:      "pending",
		Total:       total,
		Active:      make(map[int]float64),
		StartTime:   time.Now(),
		LastUpdated: time.Now(),
	}
	return m.jobCount
}

func (m *Manager) SetMessage(id int, message string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Message = message
		info.LastUpdated = time.Now()
	}
}

// HandleEvent folds one engine event into the job's display state.
func (m *Manager) HandleEvent(id int, ev engine.ProgressEvent) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info, exists := m.outputs[id]
	if !exists {
		return
	}
	info.LastUpdated = time.Now()
	switch ev.Phase {
	case engine.PhaseActive:
		info.Status = "active"
		info.Active[ev.Index] = ev.Value
		return
	case engine.PhaseCompleted:
		info.Completed++
	case engine.PhaseFailed:
		info.Failed++
		m.errors = append(m.errors, ErrorReport{
			JobName: info.Name,
			Error:   fmt.Errorf("segment %d failed: %s", ev.Index, ev.URL),
			Time:    time.Now(),
		})
	case engine.PhaseCancelled:
		info.Cancelled++
	}
	delete(info.Active, ev.Index)
}

func (m *Manager) Complete(id int, summary engine.Summary) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	info, exists := m.outputs[id]
	if !exists {
		return
	}
	info.Complete = true
	info.Active = make(map[int]float64)
	info.Completed, info.Failed, info.Cancelled = summary.Completed, summary.Failed, summary.Cancelled
	info.LastUpdated = time.Now()
	switch {
	case summary.Success():
		info.Status = "success"
		info.Message = fmt.Sprintf("Downloaded %s (%d segments, %s at %s)", info.Name, summary.Total,
			utils.FormatBytes(uint64(summary.Bytes)), utils.FormatSpeed(summary.Bytes, summary.Elapsed.Seconds()))
	case summary.Failed > 0:
		info.Status = "error"
		info.Message = fmt.Sprintf("%s: %d of %d segments failed", info.Name, summary.Failed, summary.Total)
	default:
		info.Status = "warning"
		info.Message = fmt.Sprintf("%s: cancelled with %d of %d segments done", info.Name, summary.Completed, summary.Total)
	}
}

func (m *Manager) ReportError(id int, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if info, exists := m.outputs[id]; exists {
		info.Complete = true
		info.Status = "error"
		info.Error = err
		info.Message = fmt.Sprintf("%s: %v", info.Name, err)
		info.LastUpdated = time.Now()
		m.errors = append(m.errors, ErrorReport{
			JobName: info.Name,
			Error:   err,
			Time:    time.Now(),
		})
	}
}

// Job returns a copy of the display state for id.
func (m *Manager) Job(id int) (JobOutput, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	info, exists := m.outputs[id]
	if !exists {
		return JobOutput{}, false
	}
	cp := *info
	cp.Active = make(map[int]float64, len(info.Active))
	for k, v := range info.Active {
		cp.Active[k] = v
	}
	return cp, true
}

func (m *Manager) GetStatusIndicator(status string) string {
	switch status {
	case "success", "pass":
		return successStyle.Render(StyleSymbols["pass"])
	case "error", "fail":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "warning":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

func (m *Manager) sortedJobs() (running, completed []*JobOutput) {
	var all []*JobOutput
	for _, info := range m.outputs {
		all = append(all, info)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})
	for _, info := range all {
		if info.Complete {
			completed = append(completed, info)
		} else {
			running = append(running, info)
		}
	}
	return running, completed
}

func (m *Manager) streamLines(info *JobOutput) []string {
	done := int64(info.Completed + info.Failed + info.Cancelled)
	lines := []string{PrintProgressBar(done, int64(info.Total), 30) + debugStyle.Render(fmt.Sprintf("%d/%d segments", done, info.Total))}
	indices := make([]int, 0, len(info.Active))
	for idx := range info.Active {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for i, idx := range indices {
		if i >= m.maxStreams {
			lines = append(lines, fmt.Sprintf("... %d more in flight", len(indices)-m.maxStreams))
			break
		}
		lines = append(lines, fmt.Sprintf("%s #%d %.1f%%", StyleSymbols["arrow"], idx, info.Active[idx]))
	}
	return lines
}

func (m *Manager) updateDisplay() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	availableLines := getTerminalHeight() - 3
	if m.numLines > 0 {
		fmt.Fprintf(m.out, "\033[%dA\033[J", m.numLines)
	}
	lineCount := 0
	running, completed := m.sortedJobs()
	indent := strings.Repeat(" ", 2)
	for _, info := range running {
		if lineCount >= availableLines {
			break
		}
		elapsed := time.Since(info.StartTime).Round(time.Second)
		message := info.Message
		if message == "" {
			message = info.Name
		}
		fmt.Fprintf(m.out, "%s%s %s %s\n", indent, m.GetStatusIndicator(info.Status), debugStyle.Render(elapsed.String()), styleMessage(info.Status, message))
		lineCount++
		for _, line := range m.streamLines(info) {
			if lineCount >= availableLines {
				break
			}
			fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), streamStyle.Render(line))
			lineCount++
		}
	}
	for _, info := range completed {
		if lineCount >= availableLines {
			break
		}
		total := info.LastUpdated.Sub(info.StartTime).Round(time.Second)
		fmt.Fprintf(m.out, "%s%s %s %s\n", indent, m.GetStatusIndicator(info.Status), debugStyle.Render(total.String()), styleMessage(info.Status, info.Message))
		lineCount++
	}
	m.numLines = lineCount
}

func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.updateDisplay()
			case <-m.doneCh:
				m.updateDisplay()
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Fprintln(m.out)
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Bold(true).Render("Errors:"))
	for i, err := range m.errors {
		fmt.Fprintf(m.out, "%s%s %s %s\n",
			strings.Repeat(" ", 2+2),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", err.Time.Format("15:04:05"))),
			errorStyle.Render(fmt.Sprintf("Job: %s", err.JobName)))
		fmt.Fprintf(m.out, "%s%s\n", strings.Repeat(" ", 2+4), errorStyle.Render(fmt.Sprintf("Error: %v", err.Error)))
	}
}

func (m *Manager) ShowSummary() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	fmt.Fprintln(m.out)
	var success, failures int
	for _, info := range m.outputs {
		if info.Status == "success" {
			success++
		} else if info.Status == "error" {
			failures++
		}
	}
	fmt.Fprintln(m.out, strings.Repeat(" ", 2)+success2Style.Render(fmt.Sprintf("Completed %d of %d", success, len(m.outputs))))
	if failures > 0 {
		fmt.Fprintln(m.out, strings.Repeat(" ", 2)+errorStyle.Render(fmt.Sprintf("Failed %d of %d", failures, len(m.outputs))))
	}
	m.displayErrors()
	fmt.Fprintln(m.out)
}
