package main

import (
	"context"
	"os"

	"github.com/hupe1980/tessera/cmd"
)

func main() {
	rc := cmd.NewRootCommand(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.Execute(context.Background(), rc); err != nil {
		os.Exit(1)
	}
}
