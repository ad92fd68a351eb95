// Command bulkhead executes work manifests against a quota-limited API.
package main

import (
	"os"

	"github.com/rshade/bulkhead/internal/cli"
	"github.com/rshade/bulkhead/pkg/version"
)

func main() {
	os.Exit(run())
}

// run executes the root command and maps errors to the process exit code.
func run() int {
	root := cli.NewRootCmd(version.GetVersion())
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
