// Package buildinfo carries build-time metadata injected through ldflags.
package buildinfo

import (
	"fmt"
	"runtime"
)

// UnknownValue is reported for metadata the build did not set.
const UnknownValue = "unknown"

// Info contains build-time metadata that is not user-configurable.
type Info struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string
}

// New returns build info for the given ldflags values.
func New(version, buildDate string) *Info {
	return &Info{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version or UnknownValue.
func (i *Info) GetVersion() string {
	if i == nil || i.Version == "" {
		return UnknownValue
	}
	return i.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (i *Info) GetBuildDate() string {
	if i == nil || i.BuildDate == "" {
		return UnknownValue
	}
	return i.BuildDate
}

// UserAgent is sent on outgoing inference and report requests.
func (i *Info) UserAgent() string {
	return "wildwatch-go/" + i.GetVersion()
}

// Release names the build in error telemetry.
func (i *Info) Release() string {
	return "wildwatch@" + i.GetVersion()
}

// String renders the version line printed by --version.
func (i *Info) String() string {
	return fmt.Sprintf("%s (built %s, %s/%s)", i.GetVersion(), i.GetBuildDate(), runtime.GOOS, runtime.GOARCH)
}
