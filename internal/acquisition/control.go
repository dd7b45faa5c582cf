package acquisition

import (
	"fmt"
)

// ControlMessage is the inbound control surface from spec.md §6: a
// key/value message. Apply handles the recognised keys in the fixed order
// below regardless of the order in which they were set; the struct has no
// field for any other key.
type ControlMessage struct {
	Channels      []uint32 // key "channels"
	HasChannels   bool
	FrameSize     uint32 // key "frame_size"
	HasFrameSize  bool
	TimeFrames    uint32 // key "time_frames"
	HasTimeFrames bool
	Reset         bool // key "reset"
	Flush         bool // key "flush"
}

// pendingConfig accumulates configure() inputs across a message that sets
// channels/frame_size/time_frames without necessarily setting all three;
// any field not present in this message keeps the controller's current
// value.
type pendingConfig struct {
	channels   []uint32
	frameSize  uint32
	timeFrames uint32
}

// Apply applies a control message's recognised keys in the order
// `channels`, `frame_size`, `time_frames`, `reset`, `flush`, per spec.md
// §6 ("Multiple keys in one message are applied in the order listed
// above"). If any of channels/frame_size/time_frames is present, a single
// Configure call is made once all three have been resolved (falling back
// to the controller's current values for any not present in this
// message). A rejected configure leaves the previous configuration in
// force and is returned to the caller, per the ConfigurationError policy.
func (c *Controller) Apply(msg ControlMessage) error {
	if msg.HasChannels || msg.HasFrameSize || msg.HasTimeFrames {
		pending := pendingConfig{
			channels:   c.channels,
			frameSize:  c.frameSizeBytes,
			timeFrames: c.numTimeFrames,
		}
		if msg.HasChannels {
			pending.channels = msg.Channels
		}
		if msg.HasFrameSize {
			pending.frameSize = msg.FrameSize
		}
		if msg.HasTimeFrames {
			pending.timeFrames = msg.TimeFrames
		}
		if err := c.Configure(pending.channels, pending.frameSize, pending.timeFrames); err != nil {
			return fmt.Errorf("acquisition: rejecting control message, previous configuration kept: %w", err)
		}
	}

	if msg.Reset {
		c.Reset()
	}
	if msg.Flush {
		if err := c.FlushAndClose(); err != nil {
			return fmt.Errorf("acquisition: flush control message failed: %w", err)
		}
	}

	return nil
}
