package main

import "github.com/OpenTraceLab/jtagwatch/cmd/jtagwatch/cmd"

func main() {
	cmd.Execute()
}
