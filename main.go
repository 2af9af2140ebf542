package main

import "pngscrub/cmd"

func main() {
	cmd.Execute()
}
