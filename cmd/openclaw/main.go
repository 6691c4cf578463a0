// Package main is the entry point for the openclaw CLI.
package main

import (
	"fmt"
	"os"

	"github.com/openclaw/gateway-client-go/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
