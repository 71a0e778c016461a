// Command amp-sim runs auto-materialize scenario scripts.
package main

import (
	"fmt"
	"os"

	"github.com/CiderSlime/dagster/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
