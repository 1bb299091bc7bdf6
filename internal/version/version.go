// Package version exposes build metadata stamped in via ldflags:
//
//	go build -ldflags "-X github.com/rickgao/pricefeed/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/pricefeed/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/pricefeed/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Build is the metadata reported by the service at startup and on /health.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Current returns the stamped build metadata.
func Current() Build {
	return Build{Version: Version, Commit: Commit, BuildTime: BuildTime}
}

func (b Build) String() string {
	return b.Version + " (" + b.Commit + ") built " + b.BuildTime
}

// String returns the current build as "version (commit) built time".
func String() string {
	return Current().String()
}
