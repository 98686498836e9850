package main

import (
	"fmt"
	"os"

	"travelbook/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "travelbook: %v\n", err)
		os.Exit(1)
	}
}
