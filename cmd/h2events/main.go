package main

import "github.com/h2events/go-sdk/cmd/h2events/cmd"

func main() {
	cmd.Execute()
}
