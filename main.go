package main

import "github.com/agentic-research/rucksack/cmd"

func main() {
	cmd.Execute()
}
