package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"dealbroker/config"
	"dealbroker/internal/services"
)

// Prints a signed operator token for the moderation and dispute endpoints.
func main() {
	operatorID := flag.String("id", "", "Operator identifier, stored as the token subject")
	flag.Parse()

	if *operatorID == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	token, err := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).IssueOperatorToken(*operatorID)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(token)
}
