// Package acquisition implements the Acquisition Controller: the global
// state machine that owns the Channel Accumulator Set, tracks per-channel
// completion, and drives reset/flush/configure control operations.
//
// State machine (spec.md §4.5):
//
//	Idle   --configure-->  Armed
//	Armed  --first packet--> Acquiring
//	Acquiring --all channels completed, or explicit flush--> Closed
//	Closed --reset or configure--> Armed
//
// Closed silently drops further packets until reset.
package acquisition

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/doismellburning/samoyed-listmode/internal/channel"
	"github.com/doismellburning/samoyed-listmode/internal/event"
	"github.com/doismellburning/samoyed-listmode/internal/memblock"
	"github.com/doismellburning/samoyed-listmode/internal/sink"
)

// ErrConfiguration covers empty channel sets, frame_size < element width,
// and num_time_frames == 0 when a packet arrives.
var ErrConfiguration = errors.New("acquisition: configuration error")

// MaxChannels is the hardware channel-count ceiling carried from the
// original X3X2 detector frame decoder (SPEC_FULL.md §10): the detector
// head supports at most this many channels per acquisition.
const MaxChannels = 36

// State names the controller's position in the spec.md §4.5 state
// machine.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateAcquiring
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateAcquiring:
		return "acquiring"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChannelStatus is one channel's entry in a StatusReport.
type ChannelStatus struct {
	Channel               uint16
	EventsRecorded        uint64
	Completed             bool
	LastAcquisitionNumber uint16
	LastTimeFrameLow      uint8
	LastEndOfFrameBits    uint8
}

// StatusReport is the outbound status surface from spec.md §6, enriched
// with the dropped/received packet counters from SPEC_FULL.md §10.
type StatusReport struct {
	State               State
	AcquisitionComplete bool
	PacketsReceived     uint64
	PacketsDropped      uint64
	Channels            []ChannelStatus
}

// Controller holds the global acquisition state: configuration, the
// Channel Accumulator Set, and the Event Assembler that feeds it.
type Controller struct {
	logger *log.Logger

	sink sink.Sink

	state State

	numTimeFrames  uint32
	frameSizeBytes uint32
	channels       []uint32

	accum     *channel.Set
	assembler *event.Assembler

	acquisitionComplete bool
	packetsReceived     uint64
	packetsDropped      uint64
}

// New constructs a Controller in the Idle state. sink must not be nil;
// logger may be nil, in which case a no-op logger is used.
func New(s sink.Sink, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{sink: s, logger: logger, state: StateIdle}
}

// Configure atomically reallocates the accumulator set, resets all
// completion flags, clears events_recorded, and clears
// acquisition_complete. Valid from any state; transitions to Armed.
func (c *Controller) Configure(channels []uint32, frameSizeBytes uint32, numTimeFrames uint32) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: empty channel set", ErrConfiguration)
	}
	if len(channels) > MaxChannels {
		return fmt.Errorf("%w: %d channels exceeds hardware maximum of %d", ErrConfiguration, len(channels), MaxChannels)
	}
	if numTimeFrames == 0 {
		return fmt.Errorf("%w: num_time_frames must be nonzero", ErrConfiguration)
	}
	// element_width must fit at least the widest field (8 bytes).
	if frameSizeBytes < 8 {
		return fmt.Errorf("%w: frame_size %d is smaller than the widest element (8 bytes)", ErrConfiguration, frameSizeBytes)
	}

	accum, err := channel.Build(channels, frameSizeBytes)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	c.channels = append([]uint32(nil), channels...)
	c.frameSizeBytes = frameSizeBytes
	c.numTimeFrames = numTimeFrames
	c.accum = accum
	c.assembler = &event.Assembler{
		ChannelOffset: accum.Offset(),
		NumTimeFrames: numTimeFrames,
		IsConfigured:  accum.IsConfigured,
	}
	c.acquisitionComplete = false
	c.state = StateArmed

	c.logger.Info("configured", "channels", len(channels), "frame_size", frameSizeBytes, "time_frames", numTimeFrames)
	return nil
}

// Reset zeroes every block's payload and frame_count, clears completion
// flags and events_recorded, and clears acquisition_complete. Transitions
// to Armed if a configuration exists, otherwise stays Idle.
func (c *Controller) Reset() {
	if c.accum != nil {
		for _, st := range c.accum.All() {
			for _, b := range [4]*memblock.Block{st.TimeFrame, st.TimeStamp, st.EventHeight, st.ResetFlag} {
				b.Reset()
				b.ResetFrameCount()
			}
		}
		c.accum.ResetCompletion()
		c.state = StateArmed
	} else {
		c.state = StateIdle
	}
	c.acquisitionComplete = false
	c.packetsReceived = 0
	c.packetsDropped = 0
	c.logger.Info("reset")
}

// FlushAndClose emits a partial Output Frame for every block via Flush(),
// pushes each downstream, then signals end-of-acquisition. Transitions to
// Closed. When already Closed it does nothing and returns nil.
func (c *Controller) FlushAndClose() error {
	if c.accum == nil {
		return fmt.Errorf("%w: no configuration to flush", ErrConfiguration)
	}
	if c.state == StateClosed {
		return nil
	}
	for _, st := range c.accum.All() {
		for _, raw := range []*memblock.Frame{
			st.TimeFrame.Flush(),
			st.TimeStamp.Flush(),
			st.EventHeight.Flush(),
			st.ResetFlag.Flush(),
		} {
			if err := c.sink.Push(sink.FromBlockFrame(raw)); err != nil {
				return fmt.Errorf("acquisition: pushing flushed frame %s: %w", raw.Name, err)
			}
		}
	}
	if err := c.sink.EndOfAcquisition(); err != nil {
		return fmt.Errorf("acquisition: signalling end of acquisition: %w", err)
	}
	c.state = StateClosed
	c.logger.Info("flushed and closed")
	return nil
}

// OnPacketCompleted is called after a packet's events have all been
// processed. If every configured channel has completed and the
// acquisition is not already complete, it invokes FlushAndClose and marks
// acquisition_complete.
func (c *Controller) OnPacketCompleted() error {
	if c.accum == nil || c.acquisitionComplete {
		return nil
	}
	if c.accum.AllCompleted() {
		if err := c.FlushAndClose(); err != nil {
			return err
		}
		c.acquisitionComplete = true
	}
	return nil
}

// OnPacketReceived is the core's synchronous, non-blocking entry point
// (spec.md §5). In Closed state, or once acquisition_complete, packets are
// silently discarded and nil is returned (late-arrival policy). Otherwise the packet is fed
// to the Event Assembler, dispatched to the Channel Accumulator Set, and
// OnPacketCompleted is invoked.
func (c *Controller) OnPacketReceived(packet []byte) error {
	if c.state == StateClosed || c.acquisitionComplete {
		c.logger.Debug("late packet discarded", "state", c.state)
		return nil
	}
	if c.accum == nil || c.assembler == nil {
		return fmt.Errorf("%w: no configuration in force", ErrConfiguration)
	}

	if c.state == StateArmed {
		c.state = StateAcquiring
	}

	events, err := c.assembler.Feed(packet)
	c.packetsReceived++
	if err != nil {
		if errors.Is(err, event.ErrUnconfiguredChannel) {
			c.logger.Debug("discarding packet for unconfigured channel", "err", err)
		} else {
			c.packetsDropped++
			c.logger.Warn("dropping malformed packet", "err", err)
		}
		return nil
	}

	for _, e := range events {
		frames := c.accum.Dispatch(e, c.numTimeFrames)
		for _, f := range frames {
			if err := c.sink.Push(sink.FromBlockFrame(f)); err != nil {
				return fmt.Errorf("acquisition: pushing frame %s: %w", f.Name, err)
			}
		}
	}

	return c.OnPacketCompleted()
}

// State returns the controller's current position in the §4.5 state
// machine.
func (c *Controller) State() State { return c.state }

// Status reports the per-channel and acquisition-wide counters from
// spec.md §6, plus the supplemented packet counters from SPEC_FULL.md §10.
func (c *Controller) Status() StatusReport {
	report := StatusReport{
		State:               c.state,
		AcquisitionComplete: c.acquisitionComplete,
		PacketsReceived:     c.packetsReceived,
		PacketsDropped:      c.packetsDropped,
	}
	if c.accum == nil {
		return report
	}
	for _, st := range c.accum.All() {
		report.Channels = append(report.Channels, ChannelStatus{
			Channel:               st.Channel,
			EventsRecorded:        st.EventsRecorded,
			Completed:             st.Completed,
			LastAcquisitionNumber: st.LastAcquisitionNumber,
			LastTimeFrameLow:      st.LastTimeFrameLow,
			LastEndOfFrameBits:    st.LastEndOfFrameBits,
		})
	}
	return report
}
