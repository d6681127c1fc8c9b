// Package version holds build metadata injected at link time.
package version

import (
	"fmt"
	"runtime"
)

// Set via ldflags at build time, e.g.:
//
//	go build -ldflags "-X github.com/jackzampolin/foliate/version.GitRelease=v0.2.0"
var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
)

// GoInfo describes the Go toolchain and platform of this build.
var GoInfo = fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
