// Package version holds build metadata stamped in at link time:
//
//	go build -ldflags "-X .../internal/version.Version=v1.2.3"
package version

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// GitSHA identifies the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the UTC timestamp of the build.
	BuildTime = "unknown"
)
