package main

import "github.com/dockhand/dockhand/cmd/dockhand/cmd"

func main() {
	cmd.Execute()
}
