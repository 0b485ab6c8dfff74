package main

import "github.com/hooklinehq/hookline/cmd"

func main() {
	cmd.Execute()
}
