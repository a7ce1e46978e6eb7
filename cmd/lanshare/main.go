package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/agent462/lanshare/internal/executor"
	"github.com/agent462/lanshare/internal/workflow"
)

func main() {
	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, workflow.ErrAborted) || errors.Is(err, executor.ErrCancelled) || errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "lanshare: cancelled")
		} else {
			fmt.Fprintf(os.Stderr, "lanshare: %v\n", err)
		}
		os.Exit(1)
	}
}
