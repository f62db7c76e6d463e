// Package cli implements the field-agent command line client. Every data
// command works against the local store only; the network is touched by
// the auth commands and 'sync'.
package cli

import (
	"context"
	"fmt"
	"log/slog"

	httpClient "github.com/agrisync/agrisync/internal/client/api"
	"github.com/agrisync/agrisync/internal/client/iocli"
	"github.com/agrisync/agrisync/internal/client/records"
	"github.com/agrisync/agrisync/internal/client/storage"
	"github.com/agrisync/agrisync/internal/client/storage/boltdb"
	"github.com/agrisync/agrisync/internal/client/sync"
)

type Cli struct {
	io     iocli.IO
	api    httpClient.ClientAPI
	store  *boltdb.Storage
	logger *slog.Logger
}

func New(io iocli.IO, apiClient httpClient.ClientAPI, store *boltdb.Storage, logger *slog.Logger) *Cli {
	return &Cli{
		io:     io,
		api:    apiClient,
		store:  store,
		logger: logger,
	}
}

// Run dispatches a command. Argument errors come back to the caller; the
// caller decides the exit code.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "add":
		return c.runAdd(ctx, args)
	case "list":
		return c.runList(ctx, args)
	case "get":
		return c.runGet(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "sync":
		return c.runSync(ctx)
	case "watch":
		return c.runWatch(ctx, args)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// openRecords builds the record service for the logged-in owner.
func (c *Cli) openRecords(ctx context.Context) (*records.Service, error) {
	session, err := c.store.GetSession(ctx)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("not logged in. Run 'agrisync login' first")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	return records.NewService(ctx, c.store, c.store, c.store, session.OwnerID, session.RegionCode, c.logger)
}

// openSync builds the sync engine on top of the record service.
func (c *Cli) openSync(ctx context.Context) (sync.Service, error) {
	recSvc, err := c.openRecords(ctx)
	if err != nil {
		return nil, err
	}
	return sync.NewService(c.api, recSvc, c.store, c.store, c.store, sync.Config{}, c.logger), nil
}

func PrintUsage() {
	fmt.Println("AgriSync Client")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  agrisync [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version        Show version information")
	fmt.Println("  --server URL     Coordinator URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH        Path to local database (default: agrisync-client.db)")
	fmt.Println("  --compress       Use snappy compression on sync requests")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register               Register a new owner account")
	fmt.Println("  login                  Login to the coordinator")
	fmt.Println("  logout                 Remove the stored session")
	fmt.Println("  status                 Show session and pending-change status")
	fmt.Println("  add <kind>             Add a record (farm, plot, observation, livestock, transaction)")
	fmt.Println("  list [kind]            List local records, optionally one kind")
	fmt.Println("  get <id>               Show one record in full")
	fmt.Println("  delete <id>            Delete a record (syncs as a tombstone)")
	fmt.Println("  sync                   Run one sync round against the coordinator")
	fmt.Println("  watch [interval]       Sync continuously, e.g. 'watch 2m'")
	fmt.Println()
	fmt.Println("All data commands work offline; changes queue up locally and")
	fmt.Println("reach the coordinator on the next 'sync'.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  agrisync register")
	fmt.Println("  agrisync add farm")
	fmt.Println("  agrisync list plot")
	fmt.Println("  agrisync get b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5")
	fmt.Println("  agrisync --server https://sync.example.org sync")
}
