// Command matonode is the Mato host program: it reads the nodes config
// and host settings, brings a Node online, registers the bundled example
// module types, and runs until interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/mato-framework/mato/cmd/matonode/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
