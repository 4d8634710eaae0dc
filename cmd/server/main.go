package main

import (
	"fmt"
	"os"
)

// main hands off to the cobra command tree. Wiring lives in app.go; each
// subcommand owns one file.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
