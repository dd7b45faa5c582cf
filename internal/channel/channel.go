// Package channel owns the four Memory Blocks (time_frame, time_stamp,
// event_height, reset_flag) for every configured detector channel and
// routes decoded events to the right channel's blocks.
//
// Per spec.md's design notes (§9), channel state is kept in a dense,
// contiguous structure indexed by channel number when the configured
// channel set is contiguous (the common case: a detector head's channels
// are a small consecutive range), falling back to a short linear scan
// otherwise. Configured channel sets are small ("dozens"), so neither path
// needs a map.
package channel

import (
	"fmt"

	"github.com/doismellburning/samoyed-listmode/internal/event"
	"github.com/doismellburning/samoyed-listmode/internal/memblock"
)

// State is one channel's accumulators and completion bookkeeping.
type State struct {
	Channel        uint16
	TimeFrame      *memblock.Block
	TimeStamp      *memblock.Block
	EventHeight    *memblock.Block
	ResetFlag      *memblock.Block
	Completed      bool
	EventsRecorded uint64

	// LastAcquisitionNumber, LastTimeFrameLow and LastEndOfFrameBits back
	// the channel_<N> status triple from spec.md §6.
	LastAcquisitionNumber uint16
	LastTimeFrameLow      uint8
	LastEndOfFrameBits    uint8
}

// Set owns every configured channel's four Memory Blocks.
type Set struct {
	offset     uint16
	contiguous bool
	dense      []*State // indexed by channel-offset when contiguous
	sparse     []*State // fallback, linear scan
}

// Build releases any previous accumulators and constructs four new blocks
// per channel in channels, each sized to frameSizeBytes, named per
// spec.md §4.4 ("ch{channel}_{field}").
func Build(channels []uint32, frameSizeBytes uint32) (*Set, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("channel: empty channel set")
	}

	minCh, maxCh := channels[0], channels[0]
	for _, c := range channels {
		if c < minCh {
			minCh = c
		}
		if c > maxCh {
			maxCh = c
		}
	}

	s := &Set{offset: uint16(minCh)}
	s.contiguous = uint64(maxCh-minCh)+1 == uint64(len(channels))

	build := func(ch uint32) (*State, error) {
		tf, err := memblock.New(fmt.Sprintf("ch%d_time_frame", ch), 8, memblock.KindU64, frameSizeBytes)
		if err != nil {
			return nil, err
		}
		ts, err := memblock.New(fmt.Sprintf("ch%d_time_stamp", ch), 8, memblock.KindU64, frameSizeBytes)
		if err != nil {
			return nil, err
		}
		eh, err := memblock.New(fmt.Sprintf("ch%d_event_height", ch), 2, memblock.KindU16, frameSizeBytes)
		if err != nil {
			return nil, err
		}
		rf, err := memblock.New(fmt.Sprintf("ch%d_reset_flag", ch), 1, memblock.KindU8, frameSizeBytes)
		if err != nil {
			return nil, err
		}
		return &State{
			Channel:     uint16(ch),
			TimeFrame:   tf,
			TimeStamp:   ts,
			EventHeight: eh,
			ResetFlag:   rf,
		}, nil
	}

	if s.contiguous {
		s.dense = make([]*State, len(channels))
		for _, ch := range channels {
			st, err := build(ch)
			if err != nil {
				return nil, err
			}
			s.dense[uint16(ch)-s.offset] = st
		}
	} else {
		s.sparse = make([]*State, 0, len(channels))
		for _, ch := range channels {
			st, err := build(ch)
			if err != nil {
				return nil, err
			}
			s.sparse = append(s.sparse, st)
		}
	}

	return s, nil
}

// Offset returns the configured channel_offset (the minimum configured
// channel number), used by the event assembler to resolve tag-9 channels.
func (s *Set) Offset() uint16 { return s.offset }

// Lookup returns the State for channel, or (nil, false) if it is not
// configured.
func (s *Set) Lookup(channel uint16) (*State, bool) {
	if s.contiguous {
		if channel < s.offset {
			return nil, false
		}
		idx := int(channel - s.offset)
		if idx >= len(s.dense) {
			return nil, false
		}
		st := s.dense[idx]
		return st, st != nil
	}
	for _, st := range s.sparse {
		if st.Channel == channel {
			return st, true
		}
	}
	return nil, false
}

// IsConfigured adapts Lookup to event.ChannelIsConfigured.
func (s *Set) IsConfigured(channel uint16) bool {
	_, ok := s.Lookup(channel)
	return ok
}

// All returns every channel's State, for iteration by the acquisition
// controller (reset, flush, status). A contiguous set is returned in
// channel-ascending order; a sparse set in the order the channels were
// passed to Build.
func (s *Set) All() []*State {
	if s.contiguous {
		out := make([]*State, 0, len(s.dense))
		for _, st := range s.dense {
			if st != nil {
				out = append(out, st)
			}
		}
		return out
	}
	out := make([]*State, len(s.sparse))
	copy(out, s.sparse)
	return out
}

// Dispatch routes one assembled event to its channel's blocks, per
// spec.md §4.3's per-packet emission protocol. It returns any completed
// Output Frames produced by this single event (at most one per block).
// The caller (the acquisition controller) is responsible for pushing
// frames downstream and for checking global completion afterward.
func (s *Set) Dispatch(e event.Event, numTimeFrames uint32) []*memblock.Frame {
	st, ok := s.Lookup(e.Channel)
	if !ok {
		// The assembler has already filtered unconfigured channels; a
		// stray event here is silently dropped per spec.md §4.4.
		return nil
	}

	st.LastAcquisitionNumber = e.AcquisitionNumber
	st.LastTimeFrameLow = uint8(e.TimeFrame)
	st.LastEndOfFrameBits = endOfFrameBits(e)

	if e.DummyEvent {
		s.maybeComplete(st, e, numTimeFrames)
		return nil
	}

	var frames []*memblock.Frame
	if !e.EndOfFrame {
		if f, _ := st.TimeFrame.AddU64WithTimeFrame(e.TimeFrame, e.TimeFrame); f != nil {
			frames = append(frames, f)
		}
		if f, _ := st.TimeStamp.AddU64WithTimeFrame(e.TimeStamp, e.TimeFrame); f != nil {
			frames = append(frames, f)
		}
		if f, _ := st.EventHeight.AddU16(e.EventHeight); f != nil {
			frames = append(frames, f)
		}
		resetByte := uint8(0)
		if e.ResetFlag {
			resetByte = 1
		}
		if f, _ := st.ResetFlag.AddU8(resetByte); f != nil {
			frames = append(frames, f)
		}
		st.EventsRecorded++
	}

	s.maybeComplete(st, e, numTimeFrames)
	return frames
}

func (s *Set) maybeComplete(st *State, e event.Event, numTimeFrames uint32) {
	if e.EndOfFrame && e.TimeFrame+1 == uint64(numTimeFrames) {
		st.Completed = true
	}
}

func endOfFrameBits(e event.Event) uint8 {
	var b uint8
	if e.EndOfFrame {
		b |= 0x1
	}
	if e.TTLA {
		b |= 0x2
	}
	if e.TTLB {
		b |= 0x4
	}
	if e.DummyEvent {
		b |= 0x8
	}
	return b
}

// AllCompleted reports whether every channel in the set has Completed set.
func (s *Set) AllCompleted() bool {
	for _, st := range s.All() {
		if !st.Completed {
			return false
		}
	}
	return true
}

// ResetCompletion clears Completed and EventsRecorded on every channel,
// without touching the underlying blocks (the caller resets those
// separately via each State's blocks).
func (s *Set) ResetCompletion() {
	for _, st := range s.All() {
		st.Completed = false
		st.EventsRecorded = 0
	}
}
