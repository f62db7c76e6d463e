package cli

import (
	"context"
	"fmt"
)

// runLogout drops the stored session. Local records and queued changes
// stay on the device; logging back in resumes where the device left off.
func (c *Cli) runLogout(ctx context.Context) error {
	if err := c.store.ClearSession(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	c.io.Println("✓ Logged out. Local data is kept on this device.")
	return nil
}
