package main

import (
	"fmt"
	"os"

	"github.com/Gurpartap/taskloop/internal/cli"
)

func main() {
	rootCmd := cli.NewRootCommand(cli.Options{})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
