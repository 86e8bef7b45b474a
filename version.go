package rediscache

import "strings"

// Version is the release of the cache server and client
const Version = "0.3.0"

// Set with -ldflags "-X github.com/raniellyferreira/redis-inmemory-cache.GitCommit=..."
var (
	GitCommit string
	BuildTime string
)

// VersionInfo returns version, commit and build time as reported by the binaries
func VersionInfo() map[string]string {
	info := map[string]string{
		"version": Version,
	}
	if GitCommit != "" {
		info["commit"] = GitCommit
	}
	if BuildTime != "" {
		info["buildTime"] = BuildTime
	}
	return info
}

// VersionString formats VersionInfo on one line, e.g. "0.3.0 (commit abc123)"
func VersionString() string {
	var extra []string
	if GitCommit != "" {
		extra = append(extra, "commit "+GitCommit)
	}
	if BuildTime != "" {
		extra = append(extra, "built "+BuildTime)
	}
	if len(extra) == 0 {
		return Version
	}
	return Version + " (" + strings.Join(extra, ", ") + ")"
}
