// Command peernetic drives peernetic's deterministic simulator from the
// command line, for manual inspection of the same scenarios the test
// suite asserts automatically.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
