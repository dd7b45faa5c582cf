package reader

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCP_DeliversPackets(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	r := &TCP{Addr: addr}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var received [][]byte
	done := make(chan struct{})

	go func() {
		_ = r.Run(ctx, func(packet []byte) error {
			cp := make([]byte, len(packet))
			copy(cp, packet)
			mu.Lock()
			received = append(received, cp)
			mu.Unlock()
			close(done)
			return nil
		})
	}()

	// Give the listener a moment to come up.
	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	packet := make([]byte, PacketBytes)
	packet[0] = 0xAB
	_, err = conn.Write(packet)
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, byte(0xAB), received[0][0])
}
