// The main package for the attuario executable.
package main

import (
	"github.com/attuario-ai/attuario/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
