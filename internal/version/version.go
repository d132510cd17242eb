// Package version exposes the build version string.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release version, overridable by ldflags.
	Version = "dev"
	// CommitHash is the git commit hash at build time, overridable by ldflags.
	CommitHash = ""
	// BuildTime is when the binary was built, overridable by ldflags.
	BuildTime = ""
)

// GetInfo returns the version plus an abbreviated commit hash when available.
func GetInfo() string {
	if CommitHash == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					CommitHash = setting.Value
				case "vcs.time":
					BuildTime = setting.Value
				}
			}
		}
	}

	res := Version
	if CommitHash != "" {
		shortHash := CommitHash
		if len(shortHash) > 7 {
			shortHash = shortHash[:7]
		}
		res += fmt.Sprintf(" (%s)", shortHash)
	}
	return res
}
