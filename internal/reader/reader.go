// Package reader defines the packet source's contract (out of scope per
// spec.md §1: "the TCP receive loop... its contract: deliver each packet
// to the core as one opaque buffer") and provides a TCP implementation so
// the module is runnable end-to-end.
package reader

import "context"

// PacketBytes is the fixed wire size of one packet (spec.md §3).
const PacketBytes = 8192

// Handler is called with one opaque 8192-byte packet at a time, in arrival
// order. It must not retain the slice past the call; implementations that
// need to keep the bytes should copy them.
type Handler func(packet []byte) error

// Reader delivers packets to a Handler until ctx is cancelled or the
// underlying transport closes.
type Reader interface {
	Run(ctx context.Context, handle Handler) error
}
