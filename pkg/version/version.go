// Package version exposes the build-time version of the bulkhead binary.
package version

// Version is set at build time via -ldflags "-X github.com/rshade/bulkhead/pkg/version.Version=...".
//
//nolint:gochecknoglobals // Build-time injection requires a package-level variable.
var Version = "dev"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
