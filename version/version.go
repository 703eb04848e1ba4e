// Package version carries build metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X fanshare/version.Version=1.0.3 -X fanshare/version.CommitHash=$(git rev-parse HEAD)"
package version

import "fmt"

var (
	Version    = "1.0.3"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

// BuildInfo is the build metadata in a form handlers can serialize.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Info snapshots the stamped build metadata.
func Info() BuildInfo {
	return BuildInfo{Version: Version, Commit: CommitHash, BuildTime: BuildTime}
}

// ShortCommit is the first seven characters of the commit, or "" when unstamped.
func (b BuildInfo) ShortCommit() string {
	if b.Commit == "unknown" || len(b.Commit) < 7 {
		return ""
	}
	return b.Commit[:7]
}

// String renders "1.0.3 (abc1234)", dropping the commit when it is unknown.
func (b BuildInfo) String() string {
	if short := b.ShortCommit(); short != "" {
		return fmt.Sprintf("%s (%s)", b.Version, short)
	}
	return b.Version
}
