// Package main prints bearer tokens for local development. Tokens are signed
// with the development JWT key and will not work when JWT_SIGNING_KEY is set.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "clinictrack/internal/jwt_token"
	"clinictrack/internal/platform/config"
	"clinictrack/pkg/requestcontext"
)

const (
	tokenIssuer     = "clinictrack"
	defaultTokenTTL = time.Hour
)

type tokenOutput struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Claims    map[string]any    `json:"claims"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	tenantCmd := flag.NewFlagSet("tenant", flag.ExitOnError)
	tenantName := tenantCmd.String("tenant", "", "Tenant name (required)")
	tenantAdmin := tenantCmd.Bool("admin", false, "Mark the token as the admin tenant")
	tenantTTL := tenantCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	tenantJSON := tenantCmd.Bool("json", false, "Output as JSON")

	proCmd := flag.NewFlagSet("professional", flag.ExitOnError)
	proTenant := proCmd.String("tenant", "", "Tenant name (required)")
	proUser := proCmd.String("user", "", "Professional user name (required)")
	proTTL := proCmd.Duration("ttl", defaultTokenTTL, "Token time-to-live")
	proJSON := proCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "tenant":
		_ = tenantCmd.Parse(os.Args[2:])
		require(*tenantName, "tenant")
		issue(requestcontext.Principal{
			Tenant: *tenantName,
			Role:   requestcontext.RoleTenant,
			Admin:  *tenantAdmin,
		}, *tenantTTL, *tenantJSON)
	case "professional":
		_ = proCmd.Parse(os.Args[2:])
		require(*proTenant, "tenant")
		require(*proUser, "user")
		issue(requestcontext.Principal{
			Tenant: *proTenant,
			User:   *proUser,
			Role:   requestcontext.RoleProfessional,
		}, *proTTL, *proJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Print development bearer tokens for clinictrack

WARNING: tokens are signed with the development key and only work against a
         server running without JWT_SIGNING_KEY.

Usage:
  tokengen <command> [flags]

Commands:
  tenant        Token for a tenant account
  professional  Token for a professional user

Examples:
  tokengen tenant -tenant ClinicA
  tokengen professional -tenant ClinicA -user drsmith -ttl 8h -json`)
}

func require(value, flagName string) {
	if value == "" {
		fmt.Fprintf(os.Stderr, "-%s is required\n", flagName)
		os.Exit(1)
	}
}

func issue(p requestcontext.Principal, ttl time.Duration, jsonOutput bool) {
	svc := jwttoken.NewJWTService(config.DevJWTSigningKey, tokenIssuer, ttl)
	token, expiresAt, err := svc.Issue(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(tokenOutput{
			Token:     token,
			ExpiresAt: expiresAt,
			Claims: map[string]any{
				"tenant": p.Tenant,
				"user":   p.User,
				"role":   p.Role,
				"admin":  p.Admin,
			},
			Usage: map[string]string{
				"header": "Authorization: Bearer <token>",
			},
		})
		return
	}

	fmt.Println("Bearer Token (JWT)")
	fmt.Println("==================")
	fmt.Printf("Tenant:     %s\n", p.Tenant)
	if p.User != "" {
		fmt.Printf("User:       %s\n", p.User)
	}
	fmt.Printf("Role:       %s\n", p.Role)
	fmt.Printf("Expires At: %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  curl -H \"Authorization: Bearer <token>\" http://localhost:8080/tenants/" + p.Tenant + "/users")
}
