package main

import (
	"fmt"
	"os"

	"aptchat/cmd"
)

func main() {
	if err := cmd.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "aptchat: %v\n", err)
		os.Exit(1)
	}
}
