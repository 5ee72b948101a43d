package main

import (
	"log"
	"os"

	"s3sync/cmd"
	"s3sync/config"
)

func main() {
	cnf, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cmd.Execute(cnf); err != nil {
		os.Exit(1)
	}
}
