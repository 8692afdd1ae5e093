package version

import (
	"fmt"
	"runtime"
)

// Set via -ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const Name = "meddoc"

func String() string {
	return fmt.Sprintf("%s %s (commit=%s, date=%s, go=%s, %s/%s)",
		Name, Version, Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
