// Package version reports the build identity of the fieldline binary.
package version

import (
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/fieldline/fieldline/internal/version.Version=v1.2.3".
var (
	Version    = "dev"
	CommitHash = ""
	BuildTime  = ""
)

// Info is the build identity served by /ping.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build identity, filling commit and time from VCS stamps
// when ldflags did not set them.
func Get() Info {
	once.Do(func() {
		info = Info{Version: Version, Commit: CommitHash, BuildTime: BuildTime, GoVersion: runtime.Version()}
		if bi, ok := debug.ReadBuildInfo(); ok {
			info = fromBuildInfo(info, bi.Settings)
		}
	})
	return info
}

func fromBuildInfo(in Info, settings []debug.BuildSetting) Info {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if in.Commit == "" {
				in.Commit = s.Value
			}
		case "vcs.time":
			if in.BuildTime == "" {
				in.BuildTime = s.Value
			}
		}
	}
	return in
}

// String is the version with a short commit, e.g. "v1.2.0 (a1b2c3d)".
func (i Info) String() string {
	if i.Commit == "" {
		return i.Version
	}
	short := i.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return i.Version + " (" + short + ")"
}

// GetInfo returns Get().String().
func GetInfo() string {
	return Get().String()
}
