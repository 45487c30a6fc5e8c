// Package main runs the tablekit command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/tablekit/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := cli.ExitSuccess
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		// commands report their own ExitErrors; flag and argument errors are not
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.Code
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			code = cli.ExitCommandError
		}
	}
	stop()
	os.Exit(code)
}
