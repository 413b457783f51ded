package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	root := NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}
