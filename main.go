package main

import "robodash/cmd"

func main() {
	cmd.Execute()
}
