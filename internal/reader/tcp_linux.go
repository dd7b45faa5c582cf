//go:build linux

package reader

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// tuneReceiveBuffer raises the accepted connection's socket receive buffer
// so a burst of 8192-byte packets doesn't overrun the kernel buffer between
// reads, the same sizing concern the teacher addresses for its audio
// devices and PTT file descriptors via golang.org/x/sys/unix ioctls
// (ptt.go, cm108.go) -- here applied to SO_RCVBUF instead.
func tuneReceiveBuffer(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBufSize)
}

func rawConnControl(raw syscall.RawConn) error {
	var setErr error
	err := raw.Control(func(fd uintptr) {
		setErr = tuneReceiveBuffer(fd)
	})
	if err != nil {
		return err
	}
	return setErr
}
