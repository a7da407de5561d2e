package main

import (
	cmd "github.com/secondbreakfast/conductor/cmd/conductor"

	_ "go.uber.org/automaxprocs"
)

func main() {
	cmd.Execute()
}
