// Command munihash derives salted PBKDF2 hashes for the municipality catalog
// and writes per-region table and JSON artifacts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/JonMunkholm/munihash/internal/core"
)

func main() {
	if err := Execute(context.Background()); err != nil {
		if msg := core.FormatUserError(err); msg != "" && core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, msg)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
