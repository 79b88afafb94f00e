package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubBuildInfo(t *testing.T, settings ...debug.BuildSetting) {
	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func stubLdflags(t *testing.T, commit, built string) {
	origCommit, origBuilt := GitCommit, BuildTime
	t.Cleanup(func() { GitCommit, BuildTime = origCommit, origBuilt })
	GitCommit, BuildTime = commit, built
}

func TestFull_WithoutMetadata(t *testing.T) {
	stubBuildInfo(t)
	stubLdflags(t, "unknown", "unknown")

	assert.Equal(t, Version, Full())
}

func TestFull_FromLdflags(t *testing.T) {
	stubBuildInfo(t, debug.BuildSetting{Key: "vcs.revision", Value: "ignored"})
	stubLdflags(t, "abcdef", "2026-01-01")

	full := Full()
	assert.Contains(t, full, Version)
	assert.Contains(t, full, "2026-01-01")
	assert.Contains(t, full, "abcdef")
	assert.NotContains(t, full, "ignored")
}

func TestGet_FallsBackToVCSStamp(t *testing.T) {
	stubBuildInfo(t,
		debug.BuildSetting{Key: "vcs.revision", Value: "0123abc"},
		debug.BuildSetting{Key: "vcs.time", Value: "2026-10-01T09:30:00Z"},
	)
	stubLdflags(t, "unknown", "unknown")

	info := Get()
	assert.Equal(t, Name, info.Service)
	assert.Equal(t, "0123abc", info.GitCommit)
	assert.Equal(t, "2026-10-01T09:30:00Z", info.BuildTime)
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "wafwatch/"+Version, UserAgent())
}
