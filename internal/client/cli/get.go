package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

func (c *Cli) runGet(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing record id. Usage: agrisync get <id>")
	}

	recSvc, err := c.openRecords(ctx)
	if err != nil {
		return err
	}

	record, err := recSvc.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	body, err := json.MarshalIndent(record.Payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to render payload: %w", err)
	}

	c.io.Printf("Kind:    %s\n", record.Kind)
	c.io.Printf("ID:      %s\n", record.RecordID)
	c.io.Printf("Region:  %s\n", record.RegionCode)
	if record.Synced() {
		c.io.Printf("Version: %d\n", record.Version)
	} else {
		c.io.Println("Version: not yet synced")
	}
	c.io.Printf("Updated: %s\n", record.UpdatedAt.Format(time.RFC3339))
	c.io.Println()
	c.io.Println(string(body))

	return nil
}
