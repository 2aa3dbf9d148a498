package main

import "github.com/Mohsinsiddi/w3connect/cmd"

func main() {
	cmd.Execute()
}
