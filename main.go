package main

import "github.com/pders01/simforge/cmd"

func main() {
	cmd.Execute()
}
