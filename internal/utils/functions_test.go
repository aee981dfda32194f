package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestReadURLList(t *testing.T) {
	path := writeFile(t, "urls.txt", "# playlist\nhttps://cdn.example.com/0.ts\n\n  https://cdn.example.com/1.ts  \n#https://cdn.example.com/skip.ts\n")
	urls, err := ReadURLList(path)
	if err != nil {
		t.Fatalf("ReadURLList: %v", err)
	}
	expected := []string{"https://cdn.example.com/0.ts", "https://cdn.example.com/1.ts"}
	if !reflect.DeepEqual(urls, expected) {
		t.Errorf("expected %v, got %v", expected, urls)
	}
	if _, err := ReadURLList(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadBatchFile(t *testing.T) {
	path := writeFile(t, "batch.yaml", `
- name: episode-01
  output: ./downloads/ep1
  segments:
    - https://cdn.example.com/ep1/0.ts
    - https://cdn.example.com/ep1/1.ts
  connections: 4
- segments:
    - https://cdn.example.com/ep2/0.ts
`)
	batch, err := ReadBatchFile(path)
	if err != nil {
		t.Fatalf("ReadBatchFile: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(batch))
	}
	first := batch[0]
	if first.Name != "episode-01" || first.SavePath != "./downloads/ep1" || first.Connections != 4 || len(first.URLs) != 2 {
		t.Errorf("unexpected first job: %+v", first)
	}
	second := batch[1]
	if second.Name != "job-2" || second.SavePath != "." || second.Connections != 0 {
		t.Errorf("defaults not applied: %+v", second)
	}
}

func TestReadBatchFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no segments", "- name: empty\n  output: ./x\n"},
		{"not a list", "name: single\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadBatchFile(writeFile(t, "batch.yaml", tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseHeaderArgs(t *testing.T) {
	headers := ParseHeaderArgs([]string{"Authorization: Bearer abc:def", "X-Empty:", "malformed"})
	expected := map[string]string{"Authorization": "Bearer abc:def", "X-Empty": ""}
	if !reflect.DeepEqual(headers, expected) {
		t.Errorf("expected %v, got %v", expected, headers)
	}
}

func TestClean(t *testing.T) {
	savePath := t.TempDir()
	if err := Clean(savePath); err != nil {
		t.Fatalf("Clean without temp dir: %v", err)
	}
	tempDir := TempDirPath(savePath)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, SegmentFileName(3)), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Clean(savePath); err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Errorf("temp dir still present: %v", err)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in       uint64
		expected string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, expected %q", tt.in, got, tt.expected)
		}
	}
	if got := FormatSpeed(2048, 2); got != "1.00 KB/s" {
		t.Errorf("FormatSpeed = %q", got)
	}
}
