package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agrisync/agrisync/internal/client/storage"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Status ===")
	c.io.Println()

	session, err := c.store.GetSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		c.io.Println("Status: not logged in")
		c.io.Println()
		c.io.Println("Run 'agrisync login' to authenticate.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	c.io.Println("Status: logged in")
	c.io.Printf("Owner:  %s\n", session.Username)
	c.io.Printf("Region: %s\n", session.RegionCode)

	remaining := time.Until(session.ExpiresAt)
	if remaining > 0 {
		c.io.Printf("Token:  valid for %s\n", remaining.Round(time.Second))
	} else {
		c.io.Println("Token:  expired (refreshed automatically on next sync)")
	}

	pending, err := c.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending changes: %w", err)
	}

	checkpoint, err := c.store.GetCheckpoint(ctx)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	c.io.Println()
	if pending > 0 {
		c.io.Printf("⚠ %d change(s) waiting to sync\n", pending)
		c.io.Println("Run 'agrisync sync' when you have connectivity.")
	} else {
		c.io.Println("✓ No pending changes")
	}
	c.io.Printf("Last received server version: %d\n", checkpoint)

	return nil
}
