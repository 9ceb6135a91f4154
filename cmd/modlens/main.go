// Modlens keeps a live, overlay-aware view of Paradox game data.
package main

import "github.com/albertocavalcante/modlens/cmd/modlens/internal/cli"

func main() {
	cli.Execute()
}
