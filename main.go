package main

import "github.com/stakewell/stakedash/cmd"

func main() {
	cmd.Execute()
}
