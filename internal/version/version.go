package version

// Version is the current version of caller and caller-server.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/infinitybuddha29/caller/internal/version.Version=v1.0.0'"
var Version = "dev"

// Commit is the source revision, set the same way as Version.
var Commit = "unknown"

// String returns the version with its commit.
func String() string {
	if Commit == "" || Commit == "unknown" {
		return Version
	}
	return Version + " (" + Commit + ")"
}
