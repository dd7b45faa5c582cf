//go:build !linux

package reader

import "syscall"

// rawConnControl is a no-op off Linux; SO_RCVBUF tuning via
// golang.org/x/sys/unix is Linux-specific, same as the teacher's ioctl
// calls in ptt.go and cm108.go.
func rawConnControl(raw syscall.RawConn) error {
	return nil
}
