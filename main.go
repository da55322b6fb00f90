// The main package for the pagecrawl executable.
package main

import (
	"github.com/JakeFAU/pagecrawl/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
