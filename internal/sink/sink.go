// Package sink defines the downstream frame consumer's contract (out of
// scope per spec.md §1: "the downstream frame sink... its contract:
// accept a frame descriptor and its owned payload") and provides a couple
// of reference implementations used by tests, cmd/listmode-core, and anyone
// wiring this core into a process without a real detector frame store.
package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/doismellburning/samoyed-listmode/internal/memblock"
)

// ElementKind mirrors memblock.Kind but is named from the sink's own
// vocabulary (spec.md §6: "raw-u64", "raw-u16", "raw-u8").
type ElementKind string

const (
	ElementKindRawU64 ElementKind = "raw-u64"
	ElementKindRawU16 ElementKind = "raw-u16"
	ElementKindRawU8  ElementKind = "raw-u8"
)

func elementKindOf(k memblock.Kind) ElementKind {
	switch k {
	case memblock.KindU64:
		return ElementKindRawU64
	case memblock.KindU16:
		return ElementKindRawU16
	default:
		return ElementKindRawU8
	}
}

// Frame is the fixed metadata plus owned payload a Sink receives, per
// spec.md §6.
type Frame struct {
	Sequence    uint64
	Name        string
	ElementKind ElementKind
	Dims        []int // always empty, per spec.md §3
	Payload     []byte

	// SourceTimeFrame is carried from memblock.Frame; see SPEC_FULL.md §10.
	SourceTimeFrame uint64
}

// FromBlockFrame adapts a memblock.Frame to the sink's own Frame type.
func FromBlockFrame(f *memblock.Frame) Frame {
	return Frame{
		Sequence:        f.Sequence,
		Name:            f.Name,
		ElementKind:     elementKindOf(f.Kind),
		Dims:            nil,
		Payload:         f.Payload,
		SourceTimeFrame: f.SourceTimeFrame,
	}
}

// Sink is the downstream collaborator: push a completed frame, or signal
// end of acquisition. Implementations must not block beyond the work of
// one frame (spec.md §5).
type Sink interface {
	Push(frame Frame) error
	EndOfAcquisition() error
}

// Memory is an in-process reference Sink that simply records every frame
// and end-of-acquisition signal it receives, in order. Intended for tests
// and for driving the core without a real detector frame store.
type Memory struct {
	mu      sync.Mutex
	Frames  []Frame
	EndSeen int
}

// NewMemory constructs an empty Memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Push(frame Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames = append(m.Frames, frame)
	return nil
}

func (m *Memory) EndOfAcquisition() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndSeen++
	return nil
}

// Snapshot returns a copy of the frames recorded so far, safe to read
// concurrently with further pushes.
func (m *Memory) Snapshot() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Frame, len(m.Frames))
	copy(out, m.Frames)
	return out
}

// timestampLayout names archival frame files, grounded in the teacher's
// own use of lestrrat-go/strftime for timestamped transmit-queue/log
// filenames (tq.go's strftime.Format call on save_audio_config_p's
// configured timestamp_format): "frame-<name>-%Y%m%dT%H%M%S.bin".
const timestampLayout = "%Y%m%dT%H%M%S"

// ArchiveName returns the archival filename a File sink would use for a
// frame named `name`, flushed at time `at`.
func ArchiveName(name string, at time.Time) string {
	suffix, err := strftime.Format(timestampLayout, at)
	if err != nil {
		// timestampLayout is a constant, known-good pattern; Format only
		// fails on malformed layouts.
		suffix = fmt.Sprintf("%d", at.Unix())
	}
	return fmt.Sprintf("frame-%s-%s.bin", name, suffix)
}
