// Command rewind compiles, runs, records and replays rewindable timeline
// graphs.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/rewind/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rewind: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
