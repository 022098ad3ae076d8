package main

import "github.com/phux/apiunit/cmd"

func main() {
	cmd.Execute()
}
