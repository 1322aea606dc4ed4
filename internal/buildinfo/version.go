// Package buildinfo carries build-time information embedded via
// ldflags, e.g.
// -X github.com/alextrx818/matchpipe/internal/buildinfo.Version=v1.2.0
package buildinfo

// Version is the release version. Unstamped builds report "dev".
var Version = "dev"

func GetVersion() string {
	if Version == "" {
		return "dev"
	}
	return Version
}
