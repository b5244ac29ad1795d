// Command keyset serves named ordered sets of integer keys over HTTP
// and benchmarks the trees that back them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const envPrefix = "KEYSET"

func newRootCommand() (*cobra.Command, error) {
	root := &cobra.Command{
		Use:   "keyset",
		Short: "Ordered sets of integer keys",
		Long: `keyset keeps named ordered sets of integer keys in memory.

Commands:
  serve     Serve the sets over HTTP
  bench     Run a randomized workload over every kind of set`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve, err := newServeCommand()
	if err != nil {
		return nil, err
	}

	bench, err := newBenchCommand()
	if err != nil {
		return nil, err
	}

	root.AddCommand(serve, bench)
	return root, nil
}

func main() {
	root, err := newRootCommand()
	if err == nil {
		err = root.Execute()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
