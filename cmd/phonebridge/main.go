// Command phonebridge drives the telephony command bridge from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/phonebridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
