package main

import "github.com/notargets/globemesh/cmd"

func main() {
	cmd.Execute()
}
