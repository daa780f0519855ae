package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-change-me"
	}

	// Create a new token object, specifying signing method and the claims
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "demo-user",
		"exp":     time.Now().Add(time.Hour * 24).Unix(), // Expires in 24 hours
		"iat":     time.Now().Unix(),
		"iss":     "previewd",
	})

	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		log.Fatal("Error creating token:", err)
	}

	fmt.Println("Valid JWT Token for Previewd API:")
	fmt.Println("==================================")
	fmt.Println(tokenString)
	fmt.Println("==================================")
	fmt.Println("\nUsage:")
	fmt.Println("curl -X POST http://localhost:8000/previews/demo-project/load \\")
	fmt.Println("  -H \"Content-Type: application/json\" \\")
	fmt.Println("  -H \"Authorization: Bearer " + tokenString + "\"")
}
