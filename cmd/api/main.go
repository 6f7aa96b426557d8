package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sparkcampus/doubts/backend/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "doubts:", err)
		os.Exit(cli.ExitCode(err))
	}
}
