package main

import "github.com/OpenTraceLab/OpenTraceRTT/cmd/rttlog/cmd"

func main() {
	cmd.Execute()
}
