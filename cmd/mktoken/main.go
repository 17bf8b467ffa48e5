package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/arturoeanton/go-timesheet-mapper/internal/domain"
	"github.com/arturoeanton/go-timesheet-mapper/internal/middleware"
	"github.com/arturoeanton/go-timesheet-mapper/pkg/config"
	"github.com/joho/godotenv"
)

// mktoken mints a signed API token for a user, for operators and
// integration clients. Reads JWT settings from the environment.
func main() {
	userID := flag.String("user", "", "user ID (required)")
	email := flag.String("email", "", "user email")
	name := flag.String("name", "", "user display name")
	role := flag.String("role", domain.RoleMapper, "role: admin, mapper, viewer")
	company := flag.String("company", "", "company ID (required)")
	flag.Parse()

	if *userID == "" || *company == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	token, err := middleware.GenerateJWT(&domain.User{
		ID:        *userID,
		Email:     *email,
		Name:      *name,
		Role:      *role,
		CompanyID: *company,
	}, middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate token:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
