package main

import "github.com/neutrolab/gonics/cmd"

func main() {
	cmd.Execute()
}
