package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Mirror credentials may come from a local .env file
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
