// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import "time"

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// BuildInfo provides an interface for accessing build-time metadata.
type BuildInfo interface {
	// GetVersion returns the build version string
	GetVersion() string
	// GetBuildDate returns the build date string
	GetBuildDate() string
}

// Context contains build-time metadata and the process start time.
// It is created once at startup from the linker-injected variables.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// StartTime is when the process started serving
	StartTime time.Time
}

// New returns a Context stamped with the current time.
func New(version, buildDate string) *Context {
	return &Context{
		Version:   version,
		BuildDate: buildDate,
		StartTime: time.Now(),
	}
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release returns the release identifier used for error reports.
func (c *Context) Release() string {
	return "lesionscan@" + c.GetVersion()
}

// Uptime returns the time since StartTime, or zero if it was never set.
func (c *Context) Uptime() time.Duration {
	if c == nil || c.StartTime.IsZero() {
		return 0
	}
	return time.Since(c.StartTime).Truncate(time.Second)
}
