package main

import "github.com/scriptrack/scriptrack/cmd"

func main() {
	cmd.Execute()
}
