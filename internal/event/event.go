// Package event assembles decoded fields from one packet into events: a
// channel, a 64-bit time frame, a 48-bit time stamp, an event height and a
// reset flag, plus end-of-frame / dummy-event bookkeeping bits.
//
// The assembler is a per-packet state machine (spec.md §4.3): it walks the
// fields of one packet in order, folding tag 4-9 slices into time_frame,
// tags 10-13 into time_stamp, and emitting one Event per terminator (tag 0
// or 14). Fields are not reset between events within a packet — an event
// inherits any slice not overwritten since the previous terminator. That
// is intentional wire-format behaviour, not a bug; see spec.md §4.3.
package event

import (
	"errors"
	"fmt"

	"github.com/doismellburning/samoyed-listmode/internal/field"
)

// ErrMalformedPacket covers: wrong packet length, no tag-9 before a
// terminator, or a non-terminating final field with no terminator.
var ErrMalformedPacket = errors.New("event: malformed packet")

// ErrUnconfiguredChannel is returned (and the enclosing packet aborted)
// when tag 9 resolves to a channel outside the configured set.
var ErrUnconfiguredChannel = errors.New("event: unconfigured channel")

// PacketBytes is the fixed wire size of one packet (spec.md §3).
const PacketBytes = 8192

// Event is the logical unit assembled from one terminator's worth of
// fields within a packet.
type Event struct {
	Channel           uint16
	TimeFrame         uint64
	TimeStamp         uint64
	EventHeight       uint16
	ResetFlag         bool
	EndOfFrame        bool
	TTLA              bool
	TTLB              bool
	DummyEvent        bool
	AcquisitionNumber uint16
}

// ChannelIsConfigured reports whether a raw channel value (post channel
// offset) belongs to the acquisition's configured channel set. Implemented
// as a function value so the assembler has no dependency on how channels
// are stored (dense slice vs. sparse lookup — see internal/channel).
type ChannelIsConfigured func(channel uint16) bool

// Assembler walks one packet's fields into zero or more Events. It carries
// no state across packets: a fresh traversal starts from Feed.
type Assembler struct {
	ChannelOffset uint16
	NumTimeFrames uint32

	// IsConfigured reports whether a channel belongs to the acquisition.
	// Must be set before Feed is called.
	IsConfigured ChannelIsConfigured
}

// state carries the in-progress slices of the event currently being
// assembled, scoped to a single Feed call.
type state struct {
	timeFrame         uint64
	timeStamp         uint64
	channel           uint16
	haveChannel       bool
	acquisitionNumber uint16
	endOfFrame        bool
	ttlA              bool
	ttlB              bool
	dummyEvent        bool
}

// Feed decodes one packet and returns every event assembled from it, in
// packet order. A malformed packet is discarded in its entirety: the
// events produced so far are dropped and an error is returned. An
// unconfigured-channel packet likewise aborts with all prior events for
// that packet discarded, per spec.md §4.3 ("abort this packet").
func (a *Assembler) Feed(packet []byte) ([]Event, error) {
	if len(packet) != PacketBytes {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrMalformedPacket, len(packet), PacketBytes)
	}

	fields := field.DecodePacket(packet)
	var events []Event
	var st state
	// pending is true while a non-padding field has been seen since the
	// last terminator.
	pending := false

	for _, f := range fields {
		if f.Tag != field.TagPadding {
			pending = f.Tag != field.TagReset && f.Tag != field.TagTerminator
		}
		switch f.Tag {
		case field.TagAcquisitionNumber:
			st.acquisitionNumber = f.Value

		case field.TagFrameLow:
			st.endOfFrame = f.Value&0x1 != 0
			st.ttlA = f.Value&0x2 != 0
			st.ttlB = f.Value&0x4 != 0
			st.dummyEvent = f.Value&0x8 != 0
			st.timeFrame = (st.timeFrame &^ 0xFF) | uint64((f.Value>>4)&0xFF)

		case field.TagFrame1:
			st.timeFrame = (st.timeFrame &^ (0xFFF << 8)) | (uint64(f.Value) << 8)

		case field.TagFrame2:
			st.timeFrame = (st.timeFrame &^ (0xFFF << 20)) | (uint64(f.Value) << 20)

		case field.TagFrame3:
			st.timeFrame = (st.timeFrame &^ (0xFFF << 32)) | (uint64(f.Value) << 32)

		case field.TagFrame4:
			st.timeFrame = (st.timeFrame &^ (0xFFF << 44)) | (uint64(f.Value) << 44)

		case field.TagChannel:
			channel := (f.Value >> 8) + a.ChannelOffset
			st.timeFrame = (st.timeFrame &^ (0xFF << 56)) | (uint64(f.Value&0xFF) << 56)
			if !a.IsConfigured(channel) {
				return nil, fmt.Errorf("%w: channel %d", ErrUnconfiguredChannel, channel)
			}
			st.channel = channel
			st.haveChannel = true

		case field.TagStamp0:
			st.timeStamp = (st.timeStamp &^ 0xFFF) | uint64(f.Value)

		case field.TagStamp1:
			st.timeStamp = (st.timeStamp &^ (0xFFF << 12)) | (uint64(f.Value) << 12)

		case field.TagStamp2:
			st.timeStamp = (st.timeStamp &^ (0xFFF << 24)) | (uint64(f.Value) << 24)

		case field.TagStamp3:
			st.timeStamp = (st.timeStamp &^ (0xFFF << 36)) | (uint64(f.Value) << 36)

		case field.TagReset, field.TagTerminator:
			isReset := f.Tag == field.TagReset
			if !st.haveChannel {
				return nil, fmt.Errorf("%w: terminator before channel resolved", ErrMalformedPacket)
			}
			events = append(events, Event{
				Channel:           st.channel,
				TimeFrame:         st.timeFrame,
				TimeStamp:         st.timeStamp,
				EventHeight:       f.Value,
				ResetFlag:         isReset,
				EndOfFrame:        st.endOfFrame,
				TTLA:              st.ttlA,
				TTLB:              st.ttlB,
				DummyEvent:        st.dummyEvent,
				AcquisitionNumber: st.acquisitionNumber,
			})

		case field.TagPadding:
			// no-op

		default:
			// Tags outside 0..15 cannot occur (Tag is 4 bits); unreachable.
		}
	}

	if pending {
		return nil, fmt.Errorf("%w: final field is not a terminator", ErrMalformedPacket)
	}
	return events, nil
}
