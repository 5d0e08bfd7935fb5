package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Fariz36/print-arkav/internal/config"
	"github.com/Fariz36/print-arkav/internal/db"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	username := flag.String("username", "", "username to create or update")
	password := flag.String("password", "", "plain-text password")
	team := flag.String("team", "", "team name shown in the printed header (defaults to username)")
	importFile := flag.String("import", "", "credentials file with '<team> - <username>:<password>' lines")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	users := db.NewUserOperations(database)
	ctx := context.Background()

	switch {
	case *importFile != "":
		n, err := importCredentials(ctx, users, *importFile)
		if err != nil {
			log.Fatalf("import failed: %v", err)
		}
		fmt.Printf("imported %d account(s)\n", n)

	case *username != "" && *password != "":
		teamName := strings.TrimSpace(*team)
		if teamName == "" {
			teamName = strings.TrimSpace(*username)
		}
		if err := upsertUser(ctx, users, *username, teamName, *password); err != nil {
			log.Fatalf("failed to upsert user: %v", err)
		}
		fmt.Printf("user upserted: username=%s team=%s\n", strings.TrimSpace(*username), teamName)

	default:
		fmt.Fprintln(os.Stderr, "usage: userctl -username U -password P [-team T] | userctl -import FILE")
		flag.PrintDefaults()
		os.Exit(2)
	}
}

func upsertUser(ctx context.Context, users *db.UserOperations, username, team, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return users.UpsertUser(ctx, &db.User{
		Username:     strings.TrimSpace(username),
		TeamName:     team,
		PasswordHash: string(hash),
	})
}

// importCredentials parses the whole file before touching the database, so a
// malformed line aborts the import with its line number and no partial write.
func importCredentials(ctx context.Context, users *db.UserOperations, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer f.Close()

	type record struct {
		team     string
		username string
		password string
	}

	var records []record
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		team, username, password, err := parseCredentialLine(line)
		if err != nil {
			return 0, fmt.Errorf("line %d: %w", lineNo, err)
		}
		records = append(records, record{team, username, password})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to read credentials file: %w", err)
	}

	for _, r := range records {
		if err := upsertUser(ctx, users, r.username, r.team, r.password); err != nil {
			return 0, err
		}
	}

	return len(records), nil
}

// parseCredentialLine splits "<team> - <username>:<password>". A trailing
// comma is tolerated since the lists are often pasted from spreadsheets.
func parseCredentialLine(line string) (team, username, password string, err error) {
	raw := strings.TrimSuffix(strings.TrimSpace(line), ",")

	team, rest, ok := strings.Cut(raw, " - ")
	if !ok {
		return "", "", "", fmt.Errorf("invalid format: %q", line)
	}
	username, password, ok = strings.Cut(rest, ":")
	if !ok {
		return "", "", "", fmt.Errorf("invalid format: %q", line)
	}

	team = strings.TrimSpace(team)
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if team == "" || username == "" || password == "" {
		return "", "", "", fmt.Errorf("invalid format (empty field): %q", line)
	}

	return team, username, password, nil
}
