package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SeedDefaultUsers creates the accounts in list, a comma separated
// "username:password" string. Accounts that already exist are left untouched
// so operator password changes survive restarts. Seeded accounts get their
// username as team name.
func SeedDefaultUsers(ctx context.Context, users *UserOperations, list string) error {
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		username, password, ok := strings.Cut(pair, ":")
		username = strings.TrimSpace(username)
		password = strings.TrimSpace(password)
		if !ok || username == "" || password == "" {
			continue
		}

		_, err := users.GetUserByUsername(ctx, username)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check user %s: %w", username, err)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password for %s: %w", username, err)
		}

		if err := users.UpsertUser(ctx, &User{
			Username:     username,
			TeamName:     username,
			PasswordHash: string(hash),
		}); err != nil {
			return err
		}
	}

	return nil
}
