// Package version holds the build version, set with
// -ldflags "-X rdbackup/src/version.Version=...".
package version

var Version = "dev"
