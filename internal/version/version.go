// Package version carries the build version string shown by the CLI.
package version

import "fmt"

const Version = "0.3.0"

// String returns the human-readable version line.
func String() string {
	return fmt.Sprintf("anipipe v%s", Version)
}
