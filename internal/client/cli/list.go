package cli

import (
	"context"
	"fmt"

	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/models"
)

func (c *Cli) runList(ctx context.Context, args []string) error {
	filter := storage.RecordFilter{OrderByClock: true}
	if len(args) > 0 {
		if !models.KnownKind(args[0]) {
			return fmt.Errorf("unknown record kind: %s", args[0])
		}
		filter.Kind = args[0]
	}

	recSvc, err := c.openRecords(ctx)
	if err != nil {
		return err
	}

	all, err := recSvc.Query(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}

	if len(all) == 0 {
		c.io.Println("No records found.")
		c.io.Println()
		c.io.Println("Use 'agrisync add <kind>' to record your first entry.")
		return nil
	}

	c.io.Printf("Found %d record(s):\n", len(all))
	c.io.Println()

	for i, record := range all {
		c.io.Printf("%d. [%s] %s\n", i+1, record.Kind, summarize(record))
		c.io.Printf("   ID: %s\n", record.RecordID)
		if record.Synced() {
			c.io.Printf("   Version: %d\n", record.Version)
		} else {
			c.io.Println("   Version: not yet synced")
		}
		c.io.Println()
	}

	return nil
}

// summarize picks the payload field that best names a record of each kind.
func summarize(record *models.Record) string {
	for _, field := range []string{"name", "species", "item", "category"} {
		if v, ok := record.Payload[field].(string); ok && v != "" {
			return v
		}
	}
	return "(unnamed)"
}
