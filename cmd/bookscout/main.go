package main

import (
	"github.com/joho/godotenv"

	"bookscout/internal/cli"
)

// These variables are populated by the build via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// A .env file in the working directory is optional; a missing file
	// is not an error.
	_ = godotenv.Load()

	cli.SetBuildInfo(version, commit, date)
	cli.Execute()
}
