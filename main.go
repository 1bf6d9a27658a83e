package main

import "github.com/audiolibrelab/soundcheck/cmd"

func main() {
	cmd.Execute()
}
