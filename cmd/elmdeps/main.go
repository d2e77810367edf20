package main

import "martianoff/elmdeps/cmd/elmdeps/commands"

func main() {
	commands.Execute()
}
