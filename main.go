package main

import (
	"log"

	"github.com/joho/godotenv"

	"docauto/cmd"
	"docauto/internal/config"
	"docauto/internal/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	l := logger.WithComponent("main")
	l.Debug().Str("ocr_engine", cfg.OCREngine).Msg("Starting docauto")

	cmd.Execute(cfg)
}
