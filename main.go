package main

import "github.com/mickaelvieira/mighty-qa-go-example/cmd"

func main() {
	cmd.Execute()
}
