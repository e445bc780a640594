package main

import (
	"log"

	"github.com/joho/godotenv"

	"erptools/cmd"
	"erptools/internal/config"
	"erptools/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// An invalid configuration still gets a working logger; commands fall
	// back to built-in defaults on their own.
	logConfig := logger.DefaultConfig()
	if cfg, err := config.Load(); err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
	} else {
		logConfig = cfg.GetLoggerConfig()
	}
	if err := logger.Setup(logConfig); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	cmd.Execute()
}
