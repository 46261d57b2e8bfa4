package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/islandtrails/excursion-backend/internal/utils"
	"github.com/islandtrails/excursion-backend/pkg/jwt"
	"github.com/joho/godotenv"
)

func main() {
	withToken := flag.Bool("token", false, "also print a signed development access token")
	userFlag := flag.String("user", "", "user ID for the development token (random when empty)")
	rolesFlag := flag.String("roles", jwt.RoleTraveller, "comma-separated roles for the development token")
	expiry := flag.Duration("expiry", 24*time.Hour, "development token lifetime")
	flag.Parse()

	fmt.Println("===========================================")
	fmt.Println("JWT Secret Generator for Island Trails")
	fmt.Println("===========================================")
	fmt.Println()

	secret, err := utils.GenerateSecret(32)
	if err != nil {
		log.Fatalf("Failed to generate secret: %v", err)
	}

	fmt.Println("Add this to your .env file:")
	fmt.Println()
	fmt.Printf("JWT_SECRET=%s\n", secret)
	fmt.Println()

	if *withToken {
		// Sign with the configured secret so the token works against a running server
		_ = godotenv.Load()
		signingSecret := os.Getenv("JWT_SECRET")
		if signingSecret == "" {
			signingSecret = secret
		}
		issuer := os.Getenv("JWT_ISSUER")
		if issuer == "" {
			issuer = "islandtrails-auth"
		}

		userID := uuid.New()
		if *userFlag != "" {
			userID, err = uuid.Parse(*userFlag)
			if err != nil {
				log.Fatalf("Invalid user ID: %v", err)
			}
		}

		roles := strings.Split(*rolesFlag, ",")
		token, err := jwt.NewService(signingSecret, issuer, *expiry).GenerateAccessToken(userID, roles)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}

		fmt.Printf("Development token for %s (roles: %s, expires in %s):\n", userID, *rolesFlag, *expiry)
		fmt.Println()
		fmt.Println(token)
		fmt.Println()
	}

	fmt.Println("IMPORTANT: Keep secrets safe and never commit them to version control!")
	fmt.Println("===========================================")
}
