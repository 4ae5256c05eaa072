package main

import "github.com/bryanchriswhite/AlphaShot/cmd/alphashot/commands"

func main() {
	commands.Execute()
}
