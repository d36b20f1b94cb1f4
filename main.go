package main

import "github.com/kozaktomas/emotion-stream/cmd"

func main() {
	cmd.Execute()
}
