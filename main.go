package main

import "gitr-mirror/cmd"

func main() {
	cmd.Execute()
}
