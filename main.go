package main

import "github.com/tanq16/segfetch/cmd"

func main() {
	cmd.Execute()
}
