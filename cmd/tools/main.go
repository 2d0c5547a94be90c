package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"climalog/internal/config"
	"climalog/internal/db"
	"climalog/internal/logging"
	"climalog/internal/migrate"
)

var version = "dev"
var appName = "climalog-tools"

const usage = `usage: %s <command>
  migrate  apply pending schema migrations
  status   list migrations and whether they are applied
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, usage, os.Args[0])
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, ".env error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg, version, appName)

	if err := run(context.Background(), cfg, logger, os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, command string) error {
	switch command {
	case "migrate", "status":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	conn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			logger.Error("db close", "err", closeErr)
		}
	}()

	switch command {
	case "migrate":
		if err := migrate.Run(ctx, conn, logger); err != nil {
			return err
		}
		fmt.Println("migrations applied")
	case "status":
		migrations, err := migrate.Status(ctx, conn)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			fmt.Fprintf(tw, "%s\t%s\t%t\n", m.Version, m.Name, m.Applied)
		}
		return tw.Flush()
	}
	return nil
}
