// Command listmode-bench generates a synthetic stream of list-mode
// packets and dials them at a TCP listener, the same "drive the
// protocol with generated traffic" role the teacher's cmd/gen_tone and
// cmd/tnctest binaries fill for the AFSK/AX.25 modem.
package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/doismellburning/samoyed-listmode/internal/buildinfo"
	"github.com/doismellburning/samoyed-listmode/internal/event"
)

func main() {
	var (
		addr       = pflag.StringP("addr", "a", "127.0.0.1:8192", "Address of the running listmode-core listener.")
		channel    = pflag.Uint32P("channel", "c", 0, "Tag-9 channel field (0-15) to generate events for; listmode-core adds its lowest configured channel to it.")
		count      = pflag.IntP("count", "n", 10, "Number of packets to send.")
		timeFrames = pflag.Uint32P("time-frames", "t", 1, "num_time_frames the acquisition is configured with; the last packet marks end-of-frame for time_frame = time_frames-1.")
		version    = pflag.Bool("version", false, "Print version information and exit.")
	)
	pflag.Parse()

	if *version {
		fmt.Println(buildinfo.String("listmode-bench"))
		os.Exit(0)
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "listmode-bench: dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	for i := 0; i < *count; i++ {
		last := i == *count-1
		packet := syntheticPacket(uint16(*channel), uint64(i), last, *timeFrames)
		if _, err := conn.Write(packet); err != nil {
			fmt.Fprintf(os.Stderr, "listmode-bench: write: %v\n", err)
			os.Exit(1)
		}
		time.Sleep(time.Millisecond)
	}

	fmt.Printf("listmode-bench: sent %d packets to %s\n", *count, *addr)
}

// syntheticPacket builds a packet carrying a single event on channel,
// with event_height derived from the packet index so successive events
// are distinguishable downstream. If last is true, the event also carries
// end_of_frame with time_frame = timeFrames-1, to drive an acquisition to
// completion.
func syntheticPacket(channel uint16, index uint64, last bool, timeFrames uint32) []byte {
	packet := make([]byte, event.PacketBytes)
	words := make([]uint16, 0, 6)

	timeFrame := uint32(0)
	endOfFrame := uint16(0)
	if last {
		timeFrame = timeFrames - 1
		endOfFrame = 1
	}

	words = append(words,
		0x4000|uint16(timeFrame&0xFF)<<4|endOfFrame, // tag 4: end_of_frame + time_frame[0:8]
		0x5000|uint16((timeFrame>>8)&0xFFF),         // tag 5: time_frame[8:20]
		0x6000|uint16((timeFrame>>20)&0xFFF),        // tag 6: time_frame[20:32]
		0x9000|(channel<<8),                         // tag 9: channel, time_frame[56:64]=0
		0xA000|uint16(index&0xFFF),                  // tag 10: time_stamp[0:12]
		uint16(index&0xFF),                          // tag 0: event_height
	)

	for i, w := range words {
		binary.LittleEndian.PutUint16(packet[i*2:], w)
	}
	for i := len(words); i < event.PacketBytes/2; i++ {
		binary.LittleEndian.PutUint16(packet[i*2:], 0xF000) // tag 15: padding
	}
	return packet
}
