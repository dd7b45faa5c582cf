package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// File is a Sink that writes each frame's payload to its own archival file
// under Dir, named by ArchiveName. It is the nearest SPEC_FULL.md
// equivalent of the teacher's log.go, which writes received packets to a
// directory of daily CSV files rather than holding them in memory.
type File struct {
	Dir string
	Now func() time.Time // overridable for tests; defaults to time.Now
}

// NewFile constructs a File sink rooted at dir, creating it if necessary.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sink: creating directory %s: %w", dir, err)
	}
	return &File{Dir: dir, Now: time.Now}, nil
}

func (f *File) Push(frame Frame) error {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	path := filepath.Join(f.Dir, ArchiveName(frame.Name, now()))
	if err := os.WriteFile(path, frame.Payload, 0o644); err != nil {
		return fmt.Errorf("sink: writing frame %s: %w", frame.Name, err)
	}
	return nil
}

func (f *File) EndOfAcquisition() error {
	marker := filepath.Join(f.Dir, "END_OF_ACQUISITION")
	return os.WriteFile(marker, nil, 0o644)
}
