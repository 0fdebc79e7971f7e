// Package main is the entry point for the Argus passive CQL observer.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/argus/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
