// Command stepflow runs YAML plans of shell steps through a task queue.
package main

import (
	"os"

	"github.com/vnykmshr/stepflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
