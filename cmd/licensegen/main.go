// Package main is the back-office CLI that mints, inspects and revokes
// licenses directly against the configured database. It reads the same
// environment as the server (DB_DRIVER, DB_PATH, DATABASE_URL, LICENSE_SECRET).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"clinictrack/internal/license/keycodec"
	"clinictrack/internal/license/models"
	"clinictrack/internal/license/service"
	"clinictrack/internal/license/store"
	"clinictrack/internal/platform/config"
	"clinictrack/internal/platform/database"
)

type licenseOutput struct {
	ID         int64      `json:"id"`
	LicenseKey string     `json:"license_key,omitempty"`
	Kind       string     `json:"kind"`
	MaxUsers   *int       `json:"max_users"`
	State      string     `json:"state"`
	Tenant     *string    `json:"tenant,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func main() {
	generateCmd := flag.NewFlagSet("generate", flag.ExitOnError)
	genKind := generateCmd.String("kind", "basic", "License kind: basic|medium|pro|custom (aliases basica, media, profesional accepted)")
	genMaxUsers := generateCmd.Int("max-users", 0, "Seat override; 0 keeps the kind's preset")
	genNotes := generateCmd.String("notes", "", "Free-text notes stored with the license")
	genJSON := generateCmd.Bool("json", false, "Output as JSON")

	showCmd := flag.NewFlagSet("show", flag.ExitOnError)
	showID := showCmd.Int64("id", 0, "License ID")
	showJSON := showCmd.Bool("json", false, "Output as JSON")

	revokeCmd := flag.NewFlagSet("revoke", flag.ExitOnError)
	revokeID := revokeCmd.Int64("id", 0, "License ID")
	revokeJSON := revokeCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	var run func(ctx context.Context, svc *service.Service) error
	switch os.Args[1] {
	case "generate":
		_ = generateCmd.Parse(os.Args[2:])
		run = func(ctx context.Context, svc *service.Service) error {
			cmd := service.GenerateCommand{Kind: models.Kind(*genKind), Notes: *genNotes}
			if *genMaxUsers > 0 {
				cmd.MaxUsers = genMaxUsers
			}
			res, err := svc.Generate(ctx, cmd)
			if err != nil {
				return err
			}
			return printLicense(res.License, res.Key, *genJSON)
		}
	case "show":
		_ = showCmd.Parse(os.Args[2:])
		run = func(ctx context.Context, svc *service.Service) error {
			l, err := svc.Get(ctx, *showID)
			if err != nil {
				return err
			}
			return printLicense(l, "", *showJSON)
		}
	case "revoke":
		_ = revokeCmd.Parse(os.Args[2:])
		run = func(ctx context.Context, svc *service.Service) error {
			l, err := svc.Revoke(ctx, *revokeID)
			if err != nil {
				return err
			}
			return printLicense(l, "", *revokeJSON)
		}
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err := withService(run); err != nil {
		fmt.Fprintf(os.Stderr, "licensegen: %v\n", err)
		os.Exit(1)
	}
}

func withService(run func(ctx context.Context, svc *service.Service) error) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	codec, err := keycodec.New(cfg.LicenseSecret)
	if err != nil {
		return err
	}
	svc := service.New(store.NewSQL(db), codec, service.WithTx(db))
	defer svc.Wait()
	return run(ctx, svc)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `licensegen - Mint and manage clinictrack licenses

Usage:
  licensegen <command> [flags]

Commands:
  generate  Create a pending license and print its key (shown only once)
  show      Print a license by ID
  revoke    Revoke a pending license

Examples:
  licensegen generate -kind basica
  licensegen generate -kind custom -max-users 25 -notes "pilot clinic"
  licensegen show -id 4 -json
  licensegen revoke -id 4

Use "licensegen <command> -h" for more information about a command.`)
}

func printLicense(l *models.License, key string, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(licenseOutput{
			ID:         l.ID,
			LicenseKey: key,
			Kind:       string(l.Kind),
			MaxUsers:   l.MaxUsers,
			State:      string(l.State),
			Tenant:     l.TenantName,
			CreatedAt:  l.CreatedAt,
			ExpiresAt:  l.ExpiresAt,
			Notes:      l.Notes,
		})
	}

	fmt.Println("License")
	fmt.Println("=======")
	fmt.Printf("ID:        %d\n", l.ID)
	fmt.Printf("Kind:      %s\n", l.Kind)
	if l.MaxUsers != nil {
		fmt.Printf("Max users: %d\n", *l.MaxUsers)
	} else {
		fmt.Println("Max users: unlimited")
	}
	fmt.Printf("State:     %s\n", l.State)
	if l.TenantName != nil {
		fmt.Printf("Tenant:    %s\n", *l.TenantName)
	}
	if l.ExpiresAt != nil {
		fmt.Printf("Expires:   %s\n", l.ExpiresAt.Format(time.RFC3339))
	}
	if key != "" {
		fmt.Println()
		fmt.Println("Key (store it now, it cannot be shown again):")
		fmt.Println(key)
	}
	return nil
}
