package main

import "github.com/khanhnv2901/certscope/cmd"

var execCmd = cmd.Execute

func main() {
	execCmd()
}
