package main

import (
	"fmt"
	"os"

	"sanigraph/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		// Commands render their own reports and silence cobra; the
		// error line itself is printed here, once, on stderr.
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
