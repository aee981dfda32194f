package utils

// SegmentJob is the input job descriptor: an ordered list of segment URLs
// whose positions become the segment indices.
type SegmentJob struct {
	Name        string   `yaml:"name"`
	SavePath    string   `yaml:"output"`
	URLs        []string `yaml:"segments"`
	Connections int      `yaml:"connections,omitempty"`
}

type BatchFile []SegmentJob
