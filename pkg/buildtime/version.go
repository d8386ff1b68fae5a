// Package buildtime holds values fixed when the binary is built.
//
// VERSION and revision files are overwritten by the release build.
package buildtime

import (
	_ "embed"
	"fmt"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var embeddedVersion string

//go:embed revision
var embeddedRevision string

// placeholder of the revision file in source trees.
const unreleased = "HEAD"

// Version is the release of this binary, like "0.1.0".
func Version() string {
	return strings.TrimSpace(embeddedVersion)
}

// Revision is the commit this binary has been built from.
//
// For unreleased builds, the vcs revision recorded by the go command is used if any.
func Revision() string {
	rev := strings.TrimSpace(embeddedRevision)
	if rev != unreleased {
		return rev
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return rev
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return rev
}

func VersionString() string {
	return fmt.Sprintf("%s (commit: %s)", Version(), Revision())
}
