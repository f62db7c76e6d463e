package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrisync/agrisync/internal/client/sync"
)

const defaultWatchInterval = 5 * time.Minute

// runWatch keeps syncing in the background until interrupted. Meant for
// devices that stay powered at a collection point with flaky uplink.
func (c *Cli) runWatch(ctx context.Context, args []string) error {
	interval := defaultWatchInterval
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", args[0], err)
		}
		if d < time.Second {
			return fmt.Errorf("interval must be at least 1s")
		}
		interval = d
	}

	syncSvc, err := c.openSync(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c.io.Printf("Syncing every %s. Press Ctrl+C to stop.\n", interval)

	runner := sync.NewRunner(syncSvc, interval, c.logger)
	runner.Run(ctx)

	c.io.Println()
	c.io.Println("Stopped.")
	return nil
}
