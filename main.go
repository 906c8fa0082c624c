package main

import (
	"fmt"
	"os"

	"github.com/lesionscan/lesionscan/cmd"
	"github.com/lesionscan/lesionscan/internal/buildinfo"
)

// Set with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	info := buildinfo.New(version, buildDate)

	rootCmd := cmd.RootCommand(info)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
