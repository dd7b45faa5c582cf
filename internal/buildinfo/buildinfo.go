// Package buildinfo reports the running binary's version and VCS
// provenance, adapted from the teacher's version.go (which printed Dire
// Wolf / Samoyed's APRS-specific tocall banner from the same
// debug.BuildInfo data).
package buildinfo

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Version is set at build time via
// `-ldflags "-X 'github.com/doismellburning/samoyed-listmode/internal/buildinfo.Version=X'"`.
var Version string

func settingOrDefault(bi *debug.BuildInfo, key, defaultValue string) string {
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}
	return defaultValue
}

// String formats a one-line version banner: program name, version,
// VCS revision (with a "-dirty" suffix when the working tree had local
// modifications at build time), and build time.
func String(program string) string {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return fmt.Sprintf("%s - version %s (no build info available)", program, versionOrUnknown())
	}

	buildTime := settingOrDefault(buildInfo, "vcs.time", "unknown")
	commit := settingOrDefault(buildInfo, "vcs.revision", "unknown")

	if dirty, err := strconv.ParseBool(settingOrDefault(buildInfo, "vcs.modified", "false")); err == nil && dirty {
		commit += "-dirty"
	}

	return fmt.Sprintf("%s - version %s (revision %s, built at %s)", program, versionOrUnknown(), commit, buildTime)
}

func versionOrUnknown() string {
	if Version == "" {
		return "unknown"
	}
	return Version
}
