// Command steadyboard keeps a live leaderboard stable while its source
// sheet is being edited.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/steadyboard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
