package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"agentwatch/internal/telemetry"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			telemetry.LogError("application panic", fmt.Errorf("%v", r))
			fmt.Fprintf(os.Stderr, "\n=== CRITICAL ERROR: Application Panic ===\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	Execute()
}
