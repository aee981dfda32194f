package engine

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/segfetch/internal/utils"
)

var ErrSizeMismatch = errors.New("downloaded size does not match content-length")

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status code %d", e.Code)
}

// ProgressFunc receives the running byte count of the current attempt.
// total is -1 when the server did not declare a length.
type ProgressFunc func(downloaded, total int64)

// Fetcher downloads one segment to seg.Path. Every outcome, including
// failure, is reported through the Result; Fetch never panics or returns early
// without one.
type Fetcher interface {
	Fetch(sig *CancelSignal, seg Segment, progress ProgressFunc) Result
}

type Result struct {
	Index    int
	URL      string
	Status   Status
	Attempts int
	Bytes    int64
	Err      error
}

func (r Result) Event() ProgressEvent {
	ev := ProgressEvent{Index: r.Index, URL: r.URL}
	switch r.Status {
	case StatusCompleted:
		ev.Phase, ev.Value = PhaseCompleted, CodeCompleted
	case StatusFailed:
		ev.Phase, ev.Value = PhaseFailed, CodeFailed
	default:
		ev.Phase, ev.Value = PhaseCancelled, CodeCancelled
	}
	return ev
}

type HTTPFetcher struct {
	Client    utils.HTTPDoer
	ChunkSize int
	Retry     RetryPolicy
}

func NewHTTPFetcher(client utils.HTTPDoer, chunkSize int, retry RetryPolicy) *HTTPFetcher {
	if chunkSize <= 0 {
		chunkSize = utils.DefaultChunkSize
	}
	return &HTTPFetcher{Client: client, ChunkSize: chunkSize, Retry: retry}
}

func (f *HTTPFetcher) Fetch(sig *CancelSignal, seg Segment, progress ProgressFunc) Result {
	res := Result{Index: seg.Index, URL: seg.URL}
	if progress == nil {
		progress = func(int64, int64) {}
	}
	if sig.Cancelled() {
		res.Status = StatusCancelled
		return res
	}
	if err := os.MkdirAll(filepath.Dir(seg.Path), 0755); err != nil {
		log.Error().Str("op", "engine/fetcher").Int("index", seg.Index).Msgf("Error creating temp directory: %v", err)
		res.Status = StatusFailed
		res.Err = fmt.Errorf("error creating temp directory: %w", err)
		return res
	}
	bo := f.Retry.newBackOff()
	maxAttempts := f.Retry.normalize().MaxAttempts
	for attempt := 1; ; attempt++ {
		if sig.Cancelled() {
			res.Status = StatusCancelled
			return res
		}
		res.Attempts = attempt
		log.Debug().Str("op", "engine/fetcher").Int("index", seg.Index).Int("attempt", attempt).Msgf("Downloading %s -> %s", seg.URL, seg.Path)
		n, kind, err := f.attempt(sig, seg, progress)
		res.Bytes = n
		switch kind {
		case FailureNone:
			log.Debug().Str("op", "engine/fetcher").Int("index", seg.Index).Msgf("Segment %s complete (%s)", filepath.Base(seg.Path), utils.FormatBytes(uint64(n)))
			res.Status = StatusCompleted
			res.Err = nil
			return res
		case FailureCancelled:
			res.Status = StatusCancelled
			res.Err = nil
			return res
		}
		res.Err = err
		if !f.Retry.ShouldRetry(attempt, kind) {
			log.Error().Str("op", "engine/fetcher").Int("index", seg.Index).Str("kind", kind.String()).Msgf("Segment %s failed after %d attempt(s): %v", filepath.Base(seg.Path), attempt, err)
			res.Status = StatusFailed
			return res
		}
		log.Warn().Str("op", "engine/fetcher").Int("index", seg.Index).Str("kind", kind.String()).Msgf("Error on %s: %v, retrying (%d/%d)", seg.URL, err, attempt, maxAttempts)
		if !waitBackoff(sig, bo.NextBackOff()) {
			res.Status = StatusCancelled
			res.Err = nil
			return res
		}
	}
}

func (f *HTTPFetcher) attempt(sig *CancelSignal, seg Segment, progress ProgressFunc) (int64, FailureKind, error) {
	req, err := http.NewRequestWithContext(sig.Context(), http.MethodGet, seg.URL, nil)
	if err != nil {
		return 0, FailureRequest, fmt.Errorf("error creating request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		if sig.Cancelled() {
			return 0, FailureCancelled, nil
		}
		return 0, FailureTransport, fmt.Errorf("error downloading segment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, FailureStatus, &StatusError{Code: resp.StatusCode}
	}

	total := resp.ContentLength
	file, err := os.Create(seg.Path)
	if err != nil {
		return 0, FailureFilesystem, fmt.Errorf("error creating segment file: %w", err)
	}
	defer file.Close()
	progress(0, total)

	buffer := make([]byte, f.ChunkSize)
	var downloaded int64
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if sig.Cancelled() {
				return downloaded, FailureCancelled, nil
			}
			if _, err := file.Write(buffer[:bytesRead]); err != nil {
				return downloaded, FailureFilesystem, fmt.Errorf("error writing segment: %w", err)
			}
			downloaded += int64(bytesRead)
			progress(downloaded, total)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if sig.Cancelled() {
				return downloaded, FailureCancelled, nil
			}
			return downloaded, FailureTransport, fmt.Errorf("error reading segment body: %w", readErr)
		}
	}
	if err := file.Close(); err != nil {
		return downloaded, FailureFilesystem, fmt.Errorf("error closing segment file: %w", err)
	}

	// no declared length means nothing to verify
	if total < 0 {
		return downloaded, FailureNone, nil
	}
	info, err := os.Stat(seg.Path)
	if err != nil {
		return downloaded, FailureFilesystem, fmt.Errorf("error checking segment file: %w", err)
	}
	if info.Size() != total {
		return downloaded, FailureSizeMismatch, fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, total, info.Size())
	}
	return downloaded, FailureNone, nil
}
