package main

import "github.com/compound-sh/compound/cmd"

func main() {
	cmd.Execute()
}
