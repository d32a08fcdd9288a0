package commands

import (
	"fmt"
	"runtime"
)

// VersionCommand prints build and runtime information.
func VersionCommand(version, buildDate, gitCommit string) {
	fmt.Printf("tickforge %s\n", version)
	fmt.Printf("  build date:  %s\n", buildDate)
	if gitCommit != "unknown" {
		fmt.Printf("  git commit:  %s\n", gitCommit)
	}
	fmt.Printf("  go runtime:  %s\n", runtime.Version())
}
