// Package version exposes the build version string.
package version

// Version is the application version, overridden at build time via
// -ldflags "-X github.com/sydlexius/songscout/internal/version.Version=...".
var Version = "dev"
