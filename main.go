package main

import "github.com/gonefs/gonefs/cmd"

func main() {
	cmd.Execute()
}
