package main

import (
	"os"

	"github.com/pramodthe/enterprise-ai-platform/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
