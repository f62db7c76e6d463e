package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runSync(ctx context.Context) error {
	c.io.Println("=== Synchronization ===")
	c.io.Println()

	syncSvc, err := c.openSync(ctx)
	if err != nil {
		return err
	}

	pending, err := syncSvc.PendingCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending changes: %w", err)
	}
	c.io.Printf("Pending local changes: %d\n", pending)
	c.io.Println("Contacting coordinator...")

	result, err := syncSvc.Sync(ctx)
	if err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	c.io.Println()
	c.io.Println("✓ Sync completed.")
	c.io.Printf("Pushed:    %d\n", result.Pushed)
	c.io.Printf("Pulled:    %d\n", result.Pulled)
	if result.Conflicts > 0 {
		c.io.Printf("Conflicts: %d (resolved automatically)\n", result.Conflicts)
	}
	if result.Requeued > 0 {
		c.io.Printf("Re-queued: %d merged change(s) will push next round\n", result.Requeued)
	}

	if len(result.DiscardedEdits) > 0 {
		c.io.Println()
		c.io.Println("⚠ Some of your edits were discarded because the record was")
		c.io.Println("  deleted on another device:")
		for _, id := range result.DiscardedEdits {
			c.io.Printf("  - %s\n", id)
		}
	}

	return nil
}
