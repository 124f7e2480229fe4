package main

import (
	"fmt"
	"os"

	"audio-transcriber/cmd/transcriber/cmd"
	"audio-transcriber/internal/config"
)

func main() {
	if _, err := config.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration warning: %v\n", err)
	}

	cmd.Execute()
}
