// Command kiln builds static sites from a CUE rule definition.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/kiln/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "kiln: %v\n", err)

		// Errors that never became an ExitError come from cobra itself:
		// unknown commands, bad flags, wrong argument counts.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
