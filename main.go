package main

import "github.com/tzurot/tzurot/cmd"

func main() {
	cmd.Execute()
}
