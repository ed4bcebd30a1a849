// Package version holds build metadata injected at link time via
// -ldflags "-X github.com/seedlab/sprout/version.GitRelease=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	// GitRelease is the release tag or branch the binary was built from.
	GitRelease = "dev"
	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"
	// GitCommitDate is the commit date.
	GitCommitDate = "unknown"
)

// GoInfo describes the Go toolchain and platform of the build.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)

// String renders the full multi-line version report.
func String() string {
	return fmt.Sprintf("sprout %s\n  Go:     %s\n  Commit: %s\n  Date:   %s\n",
		GitRelease, GoInfo, GitCommit, GitCommitDate)
}
