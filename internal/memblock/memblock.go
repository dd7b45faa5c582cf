// Package memblock implements the fixed-size output accumulator shared by
// every (channel, field) stream: time_frame, time_stamp, event_height and
// reset_flag each get their own Block.
//
// A single parametric type replaces the source's per-type memory block
// hierarchy (see DESIGN.md): ElementWidth and Kind are data, not separate
// Go types, and AddU8/AddU16/AddU64 are the width-specialized entry points.
package memblock

import (
	"errors"
	"fmt"
)

// Kind describes how a block's bytes should be interpreted downstream.
type Kind int

const (
	KindU8 Kind = iota
	KindU16
	KindU64
)

// ErrConfiguration is returned by SetSize when capacity_bytes cannot hold
// even one element.
var ErrConfiguration = errors.New("memblock: configuration error")

// ErrUnsupportedWidth is returned when a Block is constructed with a width
// other than 1, 2 or 8.
var ErrUnsupportedWidth = errors.New("memblock: unsupported element width")

// ErrWidthMismatch is returned by an AddU* call whose width does not match
// the block's configured ElementWidth.
var ErrWidthMismatch = errors.New("memblock: element width mismatch")

// ErrNotFull is returned by toFrame if called on a block that is not full.
var ErrNotFull = errors.New("memblock: block is not full")

// Frame is an immutable, owned output frame produced by a Block.
type Frame struct {
	Sequence uint64
	Name     string
	Kind     Kind
	Payload  []byte // owned copy; safe for the receiver to retain indefinitely

	// SourceTimeFrame is the time_frame value of the event whose element
	// filled the block, set only on frames emitted through
	// AddU64WithTimeFrame. It is zero on frames from AddU8, AddU16, AddU64
	// and Flush(). See SPEC_FULL.md §10.
	SourceTimeFrame uint64
}

// Block is a fixed-capacity byte accumulator for one (channel, field)
// stream.
type Block struct {
	Name          string
	ElementWidth  uint32
	Kind          Kind
	CapacityBytes uint32
	FilledBytes   uint32
	FrameCount    uint64
	data          []byte
}

// New constructs a Block with the given name, element width and kind, then
// sizes it. width must be one of 1, 2, 8.
func New(name string, width uint32, kind Kind, capacityBytes uint32) (*Block, error) {
	if width != 1 && width != 2 && width != 8 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedWidth, width)
	}
	b := &Block{Name: name, ElementWidth: width, Kind: kind}
	if err := b.SetSize(capacityBytes); err != nil {
		return nil, err
	}
	return b, nil
}

// SetSize reallocates the block's payload buffer to floor(bytes/width)*width,
// zeroes it, and resets FilledBytes to zero. FrameCount is left untouched.
func (b *Block) SetSize(bytes uint32) error {
	capacity := (bytes / b.ElementWidth) * b.ElementWidth
	if capacity < b.ElementWidth {
		return fmt.Errorf("%w: %d bytes cannot hold one %d-byte element",
			ErrConfiguration, bytes, b.ElementWidth)
	}
	b.CapacityBytes = capacity
	b.data = make([]byte, capacity)
	b.FilledBytes = 0
	return nil
}

func (b *Block) addBytes(width uint32, write func([]byte)) (*Frame, error) {
	if width != b.ElementWidth {
		return nil, fmt.Errorf("%w: block wants %d, got %d", ErrWidthMismatch, b.ElementWidth, width)
	}
	write(b.data[b.FilledBytes : b.FilledBytes+width])
	b.FilledBytes += width
	if b.FilledBytes == b.CapacityBytes {
		frame, err := b.toFrame(0)
		return frame, err
	}
	return nil, nil
}

// AddU8 appends one 1-byte element (reset_flag uses this width).
func (b *Block) AddU8(value uint8) (*Frame, error) {
	return b.addBytes(1, func(dst []byte) { dst[0] = value })
}

// AddU16 appends one 2-byte little-endian element (event_height).
func (b *Block) AddU16(value uint16) (*Frame, error) {
	return b.addBytes(2, func(dst []byte) {
		dst[0] = byte(value)
		dst[1] = byte(value >> 8)
	})
}

// AddU64 appends one 8-byte little-endian element (time_frame, time_stamp).
func (b *Block) AddU64(value uint64) (*Frame, error) {
	return b.addBytes(8, func(dst []byte) {
		for i := 0; i < 8; i++ {
			dst[i] = byte(value >> (8 * uint(i)))
		}
	})
}

// AddU64WithTimeFrame is AddU64 that additionally stamps the emitted Frame
// (if any) with the triggering event's time frame, per SPEC_FULL.md §10.
func (b *Block) AddU64WithTimeFrame(value uint64, timeFrame uint64) (*Frame, error) {
	frame, err := b.AddU64(value)
	if frame != nil {
		frame.SourceTimeFrame = timeFrame
	}
	return frame, err
}

// toFrame returns a completed Output Frame, advances FrameCount, and resets
// the block. Must only be called on a full block.
func (b *Block) toFrame(sourceTimeFrame uint64) (*Frame, error) {
	if b.FilledBytes != b.CapacityBytes {
		return nil, ErrNotFull
	}
	payload := make([]byte, b.CapacityBytes)
	copy(payload, b.data)
	frame := &Frame{
		Sequence:        b.FrameCount,
		Name:            b.Name,
		Kind:            b.Kind,
		Payload:         payload,
		SourceTimeFrame: sourceTimeFrame,
	}
	b.FrameCount++
	b.reset()
	return frame, nil
}

// Flush returns a partial Output Frame containing exactly the filled bytes
// (possibly zero), without mutating the block. Intended for end-of-
// acquisition emission.
func (b *Block) Flush() *Frame {
	payload := make([]byte, b.FilledBytes)
	copy(payload, b.data[:b.FilledBytes])
	return &Frame{
		Sequence: b.FrameCount,
		Name:     b.Name,
		Kind:     b.Kind,
		Payload:  payload,
	}
}

// reset zeroes the payload and FilledBytes, leaving FrameCount untouched.
func (b *Block) reset() {
	for i := range b.data {
		b.data[i] = 0
	}
	b.FilledBytes = 0
}

// Reset is the exported form of reset, used by the Acquisition Controller.
func (b *Block) Reset() {
	b.reset()
}

// ResetFrameCount sets FrameCount back to zero.
func (b *Block) ResetFrameCount() {
	b.FrameCount = 0
}
