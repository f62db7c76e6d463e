package cli

import (
	"context"
	"fmt"

	"github.com/agrisync/agrisync/internal/validation"
	"github.com/agrisync/agrisync/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	username, err := c.io.ReadInput("Username: ")
	if err != nil {
		return fmt.Errorf("failed to read username: %w", err)
	}
	if err := validation.ValidateUsername(username); err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("The region decides where your records are stored and cannot")
	c.io.Println("be changed after registration.")
	region, err := c.io.ReadInput("Region (e.g. east-africa, west-africa): ")
	if err != nil {
		return fmt.Errorf("failed to read region: %w", err)
	}
	if region == "" {
		return fmt.Errorf("region cannot be empty")
	}

	password, err := c.io.ReadPassword("Password (min 10 chars): ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if err := validation.ValidatePassword(password); err != nil {
		return err
	}

	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}

	c.io.Println()
	c.io.Println("Registering owner...")

	resp, err := c.api.Register(ctx, api.RegisterRequest{
		Username:   username,
		Password:   password,
		RegionCode: region,
	})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.io.Printf("Owner ID: %s\n", resp.OwnerID)
	c.io.Printf("Region:   %s\n", resp.RegionCode)
	c.io.Println()
	c.io.Println("Run 'agrisync login' to start recording data.")

	return nil
}
