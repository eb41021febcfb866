package main

import "github.com/querybridge/querybridge/cmd/querybridge/cmd"

func main() {
	cmd.Execute()
}
