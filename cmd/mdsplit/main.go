// Command mdsplit splits Markdown files into token-bounded chunks, writes the
// chunks as JSON and prints chunk size statistics per file.
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
