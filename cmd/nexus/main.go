// Command nexus is the entry point for the Nexus document chat service.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// chat, document, and session APIs.
package main

import (
	"fmt"
	"os"

	"github.com/nexusai/nexus/cmd/nexus/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
