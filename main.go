package main

import "github.com/certusone/wormhole/msgscan/cmd"

func main() {
	cmd.Execute()
}
