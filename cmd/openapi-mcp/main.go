// Command openapi-mcp serves the operations of an AAP OpenAPI description as
// MCP tools.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
