// Command clawscope serves the ClawScope dashboard and MCP tools.
package main

import (
	"os"

	"github.com/scrypster/clawscope/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
