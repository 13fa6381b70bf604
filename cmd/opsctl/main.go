// Command opsctl runs sync jobs, the n8n resolver, reports and one-off
// inspections from the terminal.
package main

import (
	"fmt"
	"os"

	"opshub/cmd/opsctl/internal/commands"
)

func main() {
	root := commands.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
