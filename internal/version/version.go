// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"runtime/debug"
)

const Name = "WAFWatch"

// Set via -ldflags "-X github.com/Wikid82/wafwatch/internal/version.Version=...".
var (
	Version   = "0.4.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Info is the build metadata reported by the health endpoint.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
}

var readBuildInfo = debug.ReadBuildInfo

// Get returns the build metadata. Without ldflags the commit and build time
// fall back to the VCS stamp the Go toolchain embeds.
func Get() Info {
	info := Info{Service: Name, Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	if info.GitCommit != "unknown" && info.BuildTime != "unknown" {
		return info
	}
	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.GitCommit == "unknown" && s.Value != "":
			info.GitCommit = s.Value
		case s.Key == "vcs.time" && info.BuildTime == "unknown" && s.Value != "":
			info.BuildTime = s.Value
		}
	}
	return info
}

// Full returns the version with commit and build time when they are known.
func Full() string {
	info := Get()
	if info.BuildTime != "unknown" && info.GitCommit != "unknown" {
		return info.Version + " (commit: " + info.GitCommit + ", built: " + info.BuildTime + ")"
	}
	return info.Version
}

// UserAgent identifies outgoing webhook requests.
func UserAgent() string {
	return "wafwatch/" + Version
}
