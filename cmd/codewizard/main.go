package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/santiagomed/codewizard/cli"
)

func main() {
	// A missing .env file is fine; the environment may already carry the key.
	_ = godotenv.Load()
	os.Exit(cli.Execute())
}
