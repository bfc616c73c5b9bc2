// gentoken issues a signed API token for local testing.
//
//	JWT_SECRET=dev go run ./cmd/gentoken lecturer
//	JWT_SECRET=dev go run ./cmd/gentoken student 7f0c... student@example.edu
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"

	"github.com/facemark-labs/facemark/internal/auth"
)

type tokenConfig struct {
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"facemark"`
}

func main() {
	var cfg tokenConfig
	if err := envconfig.Process("", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	role := auth.RoleStudent
	if len(os.Args) > 1 {
		role = auth.Role(os.Args[1])
	}
	if !role.Valid() {
		fmt.Fprintf(os.Stderr, "error: invalid role %q (use: lecturer, student)\n", role)
		os.Exit(1)
	}

	userID := uuid.New()
	if len(os.Args) > 2 {
		parsed, err := uuid.Parse(os.Args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid user id: %v\n", err)
			os.Exit(1)
		}
		userID = parsed
	}

	email := ""
	if len(os.Args) > 3 {
		email = os.Args[3]
	}

	svc := auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, 24*time.Hour)
	token, err := svc.GenerateToken(userID, email, role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("USER_ID=%s\nROLE=%s\nTOKEN=%s\n", userID, role, token)
}
