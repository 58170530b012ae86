package main

import "github.com/gramrelay/gramrelay/cmd"

func main() {
	cmd.Execute()
}
