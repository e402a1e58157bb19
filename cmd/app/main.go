package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/vlatan/news-sitemap/internal/server"
)

func main() {

	// Load the .env file if present
	_ = godotenv.Load()

	if err := server.NewServer().Run(); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}
