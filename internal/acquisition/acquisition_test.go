package acquisition

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doismellburning/samoyed-listmode/internal/event"
	"github.com/doismellburning/samoyed-listmode/internal/sink"
)

func packetFromWords(words []uint16) []byte {
	packet := make([]byte, event.PacketBytes)
	for i := 0; i < event.PacketBytes/2; i++ {
		var word uint16
		if i < len(words) {
			word = words[i]
		} else {
			word = 0xF000
		}
		binary.LittleEndian.PutUint16(packet[i*2:], word)
	}
	return packet
}

func newTestController(t *testing.T) (*Controller, *sink.Memory) {
	t.Helper()
	m := sink.NewMemory()
	return New(m, nil), m
}

func TestConfigure_RejectsEmptyChannels(t *testing.T) {
	c, _ := newTestController(t)
	err := c.Configure(nil, 64, 1)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigure_RejectsTooManyChannels(t *testing.T) {
	c, _ := newTestController(t)
	channels := make([]uint32, MaxChannels+1)
	for i := range channels {
		channels[i] = uint32(i)
	}
	err := c.Configure(channels, 64, 1)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigure_RejectsZeroTimeFrames(t *testing.T) {
	c, _ := newTestController(t)
	err := c.Configure([]uint32{0}, 64, 0)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigure_TransitionsToArmed(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))
	assert.Equal(t, StateArmed, c.State())
}

// S1 — single event, single channel: no frame emitted yet.
func TestOnPacketReceived_S1(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))

	packet := packetFromWords([]uint16{
		0x4010, // tag4, end_of_frame=0, time_frame low byte 0x01
		0x9000, // tag9, channel 0
		0xA123, // tag10, time_stamp low 12 bits
		0x00A5, // tag0, event_height 0xA5
	})

	require.NoError(t, c.OnPacketReceived(packet))

	status := c.Status()
	require.Len(t, status.Channels, 1)
	assert.Equal(t, uint64(1), status.Channels[0].EventsRecorded)
	assert.Empty(t, m.Snapshot(), "blocks are far from full, no frame emitted yet")
	assert.Equal(t, StateAcquiring, c.State())
}

// S2 — end-of-acquisition flush.
func TestOnPacketReceived_S2(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))

	first := packetFromWords([]uint16{0x4010, 0x9000, 0xA123, 0x00A5})
	require.NoError(t, c.OnPacketReceived(first))

	second := packetFromWords([]uint16{
		0x4001, // end_of_frame=1, time_frame low byte 0x00
		0x9000,
		0x0000,
	})
	require.NoError(t, c.OnPacketReceived(second))

	status := c.Status()
	assert.True(t, status.Channels[0].Completed)
	assert.True(t, status.AcquisitionComplete)
	assert.Equal(t, StateClosed, c.State())

	frames := m.Snapshot()
	assert.Len(t, frames, 4, "one flushed frame per block for channel 0")
	assert.Equal(t, 1, m.EndSeen)
}

// S3 — unconfigured-channel packet is dropped whole.
func TestOnPacketReceived_S3(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0, 1}, 64, 1))

	packet := packetFromWords([]uint16{0x4010, 0x9200, 0x00A5}) // channel 2

	require.NoError(t, c.OnPacketReceived(packet))

	status := c.Status()
	for _, ch := range status.Channels {
		assert.Equal(t, uint64(0), ch.EventsRecorded)
	}
	assert.Empty(t, m.Snapshot())
}

// S4 — block rollover: frame_size=16, time_stamp block width 8.
func TestOnPacketReceived_S4(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 16, 100))

	for i := 0; i < 2; i++ {
		packet := packetFromWords([]uint16{0x4000, 0x9000, 0xA001, 0x0001})
		require.NoError(t, c.OnPacketReceived(packet))
	}

	var timeStampFrames int
	for _, f := range m.Snapshot() {
		if f.Name == "ch0_time_stamp" {
			timeStampFrames++
			assert.Equal(t, uint64(0), f.Sequence)
			assert.Len(t, f.Payload, 16)
		}
	}
	assert.Equal(t, 1, timeStampFrames)
}

// S6 — reconfiguration mid-idle.
func TestConfigure_ReconfigurationResetsState(t *testing.T) {
	c, _ := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))

	packet := packetFromWords([]uint16{0x4010, 0x9000, 0x00A5})
	require.NoError(t, c.OnPacketReceived(packet))

	require.NoError(t, c.Configure([]uint32{0, 1}, 64, 1))

	status := c.Status()
	require.Len(t, status.Channels, 2)
	for _, ch := range status.Channels {
		assert.Equal(t, uint64(0), ch.EventsRecorded)
		assert.False(t, ch.Completed)
	}
	assert.False(t, status.AcquisitionComplete)
}

// Property 4: reset and flush_and_close are idempotent once Closed.
func TestReset_IdempotentWhenClosed(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))
	require.NoError(t, c.FlushAndClose())

	framesAfterFirstClose := len(m.Snapshot())

	require.NoError(t, c.FlushAndClose())
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, framesAfterFirstClose, len(m.Snapshot()), "a second flush_and_close while Closed emits nothing")
	assert.Equal(t, 1, m.EndSeen)

	c.Reset()
	assert.Equal(t, StateArmed, c.State())
	assert.Equal(t, framesAfterFirstClose, len(m.Snapshot()), "reset itself emits no frames")

	c.Reset()
	assert.Equal(t, StateArmed, c.State())
	assert.Equal(t, framesAfterFirstClose, len(m.Snapshot()), "a second reset changes nothing")
}

func TestLateArrival_SilentlyDiscardedWhenClosed(t *testing.T) {
	c, m := newTestController(t)
	require.NoError(t, c.Configure([]uint32{0}, 64, 1))
	require.NoError(t, c.FlushAndClose())

	before := len(m.Snapshot())
	packet := packetFromWords([]uint16{0x4010, 0x9000, 0x00A5})
	require.NoError(t, c.OnPacketReceived(packet))

	assert.Equal(t, before, len(m.Snapshot()), "packets received while Closed are silently dropped")
}

func TestOnPacketReceived_RejectsPacketWithoutConfiguration(t *testing.T) {
	c, _ := newTestController(t)
	err := c.OnPacketReceived(make([]byte, event.PacketBytes))
	assert.ErrorIs(t, err, ErrConfiguration)
}

// Property 6: two runs over the same packet sequence produce byte-identical
// frame payloads in the same order.
func TestDeterminism(t *testing.T) {
	packets := [][]byte{
		packetFromWords([]uint16{0x4010, 0x9000, 0xA123, 0x00A5}),
		packetFromWords([]uint16{0x4010, 0x9000, 0xA456, 0x0012}),
		packetFromWords([]uint16{0x4001, 0x9000, 0x0000}),
	}

	run := func() []sink.Frame {
		c, m := newTestController(t)
		require.NoError(t, c.Configure([]uint32{0}, 64, 1))
		for _, p := range packets {
			require.NoError(t, c.OnPacketReceived(p))
		}
		return m.Snapshot()
	}

	first := run()
	second := run()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.Equal(t, first[i].Payload, second[i].Payload)
	}
}
