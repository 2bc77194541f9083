// Command seguimientos serves and maintains the follow-up document store.
package main

import "github.com/mesh-intelligence/seguimientos/internal/cli"

func main() {
	cli.Execute()
}
