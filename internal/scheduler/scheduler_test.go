package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tanq16/segfetch/internal/engine"
	"github.com/tanq16/segfetch/internal/utils"
)

func testConfig(out *bytes.Buffer, jsonMode bool) Config {
	opts := engine.DefaultOptions()
	opts.Retry = engine.RetryPolicy{MaxAttempts: 2}
	opts.HTTPClientConfig = utils.HTTPClientConfig{Timeout: 5 * time.Second}
	return Config{Workers: 2, Connections: 2, Options: opts, JSON: jsonMode, Out: out}
}

func TestRunJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	dirA, dirB := t.TempDir(), t.TempDir()
	jobs := []utils.SegmentJob{
		{Name: "a", SavePath: dirA, URLs: []string{server.URL + "/0.ts", server.URL + "/1.ts"}},
		{Name: "b", SavePath: dirB, URLs: []string{server.URL + "/0.ts"}, Connections: 1},
	}
	var out bytes.Buffer
	if err := RunContext(context.Background(), jobs, testConfig(&out, true)); err != nil {
		t.Fatalf("RunContext: %v", err)
	}

	for _, dir := range []string{dirA, dirB} {
		info, err := os.Stat(filepath.Join(utils.TempDirPath(dir), "0.ts"))
		if err != nil || info.Size() != 2048 {
			t.Errorf("segment 0 missing in %s: %v", dir, err)
		}
	}

	completed := 0
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var tuple []any
		if err := json.Unmarshal([]byte(line), &tuple); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		if len(tuple) != 4 {
			t.Fatalf("expected 4 fields, got %v", tuple)
		}
		if tuple[1] == float64(0) && tuple[3] == float64(100) {
			completed++
		}
	}
	if completed != 3 {
		t.Errorf("expected 3 completed tuples, got %d", completed)
	}
}

func TestRunReportsFailedJob(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.ts" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("segment"))
	}))
	defer server.Close()

	jobs := []utils.SegmentJob{
		{Name: "good", SavePath: t.TempDir(), URLs: []string{server.URL + "/ok.ts"}},
		{Name: "bad", SavePath: t.TempDir(), URLs: []string{server.URL + "/ok.ts", server.URL + "/bad.ts"}},
	}
	var out bytes.Buffer
	err := RunContext(context.Background(), jobs, testConfig(&out, false))
	if !errors.Is(err, ErrJobsFailed) {
		t.Fatalf("expected ErrJobsFailed, got %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "Completed 1 of 2") {
		t.Errorf("summary missing from display output:\n%s", text)
	}
	if !strings.Contains(text, "segment 1 failed") {
		t.Errorf("segment failure missing from error list:\n%s", text)
	}
}

func TestRunInvalidJob(t *testing.T) {
	var out bytes.Buffer
	jobs := []utils.SegmentJob{{Name: "empty", SavePath: t.TempDir()}}
	err := RunContext(context.Background(), jobs, testConfig(&out, false))
	if !errors.Is(err, ErrJobsFailed) {
		t.Fatalf("expected ErrJobsFailed, got %v", err)
	}
	if !strings.Contains(out.String(), "no segment urls") {
		t.Errorf("expected validation error in output:\n%s", out.String())
	}
}

func TestRunInterrupt(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		w.Write([]byte(strings.Repeat("x", 1024)))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	var urls []string
	for i := 0; i < 6; i++ {
		urls = append(urls, server.URL+"/"+string(rune('a'+i))+".ts")
	}
	jobs := []utils.SegmentJob{{Name: "slow", SavePath: t.TempDir(), URLs: urls}}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- RunContext(ctx, jobs, testConfig(&out, true))
	}()
	select {
	case err := <-done:
		if !errors.Is(err, ErrJobsFailed) {
			t.Fatalf("expected ErrJobsFailed after interrupt, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("interrupt did not stop the run")
	}
	cancelled := 0
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var tuple []any
		if err := json.Unmarshal([]byte(line), &tuple); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		if tuple[1] == float64(0) && tuple[3] == float64(0) {
			cancelled++
		}
	}
	if cancelled != len(urls) {
		t.Errorf("expected %d cancelled tuples, got %d:\n%s", len(urls), cancelled, out.String())
	}
}
