package cli

import (
	"context"
	"fmt"
	"strings"
)

func (c *Cli) runDelete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing record id. Usage: agrisync delete <id>")
	}
	recordID := args[0]

	recSvc, err := c.openRecords(ctx)
	if err != nil {
		return err
	}

	// Show what is about to be deleted.
	record, err := recSvc.Get(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}
	c.io.Printf("Deleting [%s] %s\n", record.Kind, summarize(record))

	answer, err := c.io.ReadInput("Are you sure? The delete will apply on every device. (y/N): ")
	if err != nil {
		return err
	}
	if strings.ToLower(answer) != "y" {
		c.io.Println("Cancelled.")
		return nil
	}

	if err := recSvc.Delete(ctx, recordID); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	c.io.Println("✓ Record deleted. The deletion syncs like any other change.")
	return nil
}
