package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	resp, err := c.api.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return err
	}

	session := &storage.Session{
		OwnerID:      resp.OwnerID,
		Username:     username,
		RegionCode:   resp.RegionCode,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
	}
	if err := c.store.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Logged in.")
	c.io.Printf("Region: %s\n", resp.RegionCode)
	c.io.Println()
	c.io.Println("Run 'agrisync sync' to fetch your records.")

	return nil
}
