// Command chat bundles the local tooling of the messaging module: signing test
// tokens and running the interactive messaging client.
package main

import (
	"os"
)

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
