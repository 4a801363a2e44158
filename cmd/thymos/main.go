// Command thymos is the agent memory substrate: versioned memory, concept
// promotion, a capability-gated tool runtime, and automatic versioning
// supervision, all backed by an embedded SQLite store.
package main

import (
	"os"
	"runtime/debug"

	"github.com/thymos-run/thymos/internal/commands"
)

// version is set via ldflags (-X main.version=v1.0.0) or detected
// automatically from Go module info embedded by go install.
var version = "dev"

func main() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
