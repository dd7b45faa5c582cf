package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// rcvBufSize is the socket receive buffer target: comfortably more than
// one packet so a burst doesn't get dropped by the kernel between reads.
const rcvBufSize = 1 << 20 // 1 MiB

// TCP reads a stream of fixed PacketBytes-size packets from a single
// accepted TCP connection at a time, re-listening between connections.
// This is the module's only external-input implementation; the core
// itself (spec.md §1) treats the packet source as opaque.
type TCP struct {
	Addr string
}

// Run listens on t.Addr and, for every accepted connection, reads whole
// PacketBytes-size packets and calls handle for each, until the connection
// closes or ctx is cancelled. It keeps listening for the next connection
// after a connection closes. Run returns on ctx cancellation, on a
// listener-level error, and on a read error other than EOF or an error
// from handle, returning that error.
func (t *TCP) Run(ctx context.Context, handle Handler) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("reader: listen on %s: %w", t.Addr, err)
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reader: accept: %w", err)
		}

		if err := tuneConn(conn); err != nil {
			// Non-fatal: the socket still works, just with the OS default
			// receive buffer.
		}

		if err := t.serve(ctx, conn, handle); err != nil && ctx.Err() == nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func tuneConn(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}
	return rawConnControl(raw)
}

func (t *TCP) serve(ctx context.Context, conn net.Conn, handle Handler) error {
	defer conn.Close()

	buf := make([]byte, PacketBytes)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := io.ReadFull(conn, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("reader: read: %w", err)
		}

		// The handler must not retain buf past this call.
		if err := handle(buf); err != nil {
			return fmt.Errorf("reader: handler: %w", err)
		}
	}
}
