package main

import (
	"context"
	"fmt"
	"os"

	"github.com/BrandonDHaskell/garita/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "garita:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
