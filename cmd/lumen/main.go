package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// An interrupted run resumes from the workspace document on
			// the next invocation; exit with the interrupt convention.
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "lumen:", err)
		os.Exit(1)
	}
}
