// Package config loads the acquisition's static bootstrap configuration
// from a YAML file, grounded on the teacher's own use of gopkg.in/yaml.v3
// and its "search a list of candidate paths" pattern for tocalls.yaml
// (deviceid.go).
package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SearchPaths is checked in order for the acquisition config file, same
// idea as deviceid.go's search_locations: current directory first, then a
// couple of conventional install locations.
var SearchPaths = []string{
	"listmode.yaml",
	"./config/listmode.yaml",
	"/etc/listmode/listmode.yaml",
}

// Acquisition is the YAML shape of listmode.yaml: the channel list, frame
// size, and time-frame count that bootstrap an acquisition.Controller's
// initial Configure call (spec.md §6).
type Acquisition struct {
	Channels   []uint32 `yaml:"channels"`
	FrameSize  uint32   `yaml:"frame_size"`
	TimeFrames uint32   `yaml:"time_frames"`
	ListenAddr string   `yaml:"listen_addr"`
	ArchiveDir string   `yaml:"archive_dir"`
}

// Load reads and parses the first config file found among SearchPaths.
// It returns an error naming every location tried if none can be opened.
func Load() (*Acquisition, error) {
	return LoadFrom(SearchPaths)
}

// LoadFrom is Load parameterized over the candidate path list, for tests.
func LoadFrom(paths []string) (*Acquisition, error) {
	var file *os.File
	for _, path := range paths {
		f, err := os.Open(path)
		if err == nil {
			file = f
			break
		}
	}
	if file == nil {
		return nil, fmt.Errorf("config: could not open any of %v", paths)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", file.Name(), err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes into an Acquisition config and validates it.
func Parse(data []byte) (*Acquisition, error) {
	var cfg Acquisition
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MaxChannels mirrors acquisition.MaxChannels: the X3X2 detector head
// hardware ceiling on configured channels (SPEC_FULL.md §10). Duplicated
// here rather than imported, so pkg/config has no dependency on
// internal/acquisition and can validate a config file before any
// controller exists.
const MaxChannels = 36

// Validate checks the configuration-error cases from spec.md §7 plus the
// supplemented channel-count ceiling from SPEC_FULL.md §10.
func (a *Acquisition) Validate() error {
	if len(a.Channels) == 0 {
		return fmt.Errorf("config: channels must not be empty")
	}
	if len(a.Channels) > MaxChannels {
		return fmt.Errorf("config: %d channels exceeds hardware maximum of %d", len(a.Channels), MaxChannels)
	}
	if a.TimeFrames == 0 {
		return fmt.Errorf("config: time_frames must be nonzero")
	}
	if a.FrameSize < 8 {
		return fmt.Errorf("config: frame_size %d is smaller than the widest element (8 bytes)", a.FrameSize)
	}
	return nil
}
