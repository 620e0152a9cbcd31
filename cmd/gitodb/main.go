// Command gitodb is a small inspection tool over the gitodb object and
// reference stores, mirroring a handful of plumbing-level git
// subcommands (cat-file, rev-parse HEAD, for-each-ref) closely enough
// to be useful for manual poking at a repository, not as a full
// porcelain replacement.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "gitodb",
		Short: "Inspect a Git object store without shelling out to git",
	}

	root.AddCommand(
		newCatFileCommand(),
		newHeadCommand(),
		newRefsCommand(),
		newOpenCommand(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
