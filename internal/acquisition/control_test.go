package acquisition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_ConfiguresFromControlMessage(t *testing.T) {
	c, _ := newTestController(t)

	err := c.Apply(ControlMessage{
		Channels:      []uint32{0, 1},
		HasChannels:   true,
		FrameSize:     64,
		HasFrameSize:  true,
		TimeFrames:    5,
		HasTimeFrames: true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateArmed, c.State())
	assert.Len(t, c.Status().Channels, 2)
}

func TestApply_PartialConfigureKeepsPreviousValues(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 3))

	err := c.Apply(ControlMessage{FrameSize: 128, HasFrameSize: true})
	require.NoError(t, err)

	assert.Equal(t, uint32(128), c.frameSizeBytes)
	assert.Equal(t, uint32(3), c.numTimeFrames)
}

func TestApply_RejectedConfigureKeepsPreviousConfiguration(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 3))

	err := c.Apply(ControlMessage{TimeFrames: 0, HasTimeFrames: true})
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, uint32(3), c.numTimeFrames, "previous configuration remains in force")
}

func TestApply_ResetAndFlushKeys(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))

	require.NoError(t, c.Apply(ControlMessage{Flush: true}))
	assert.Equal(t, StateClosed, c.State())

	require.NoError(t, c.Apply(ControlMessage{Reset: true}))
	assert.Equal(t, StateArmed, c.State())
}

func TestApply_OrderIsChannelsFrameSizeTimeFramesResetFlush(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))

	// A message that both reconfigures and resets: reset runs against the
	// new three-channel configuration and leaves the controller Armed.
	err := c.Apply(ControlMessage{
		Channels:    []uint32{0, 1, 2},
		HasChannels: true,
		Reset:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateArmed, c.State())
	assert.Len(t, c.Status().Channels, 3)

	// A message that both reconfigures and flushes: flush runs after the
	// new two-channel configuration, so it emits 2*4 frames and leaves the
	// controller Closed. Flushing first would emit 3*4 frames and the
	// reconfigure would then leave it Armed.
	err = c.Apply(ControlMessage{
		Channels:    []uint32{0, 1},
		HasChannels: true,
		Flush:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, c.State())
	assert.Len(t, m.Snapshot(), 8)
}
