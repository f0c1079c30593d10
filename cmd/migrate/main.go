// Command migrate applies or reverts the embedded database migrations.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/newsletter/newsletter/internal/migrate"
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		direction   = flag.String("direction", "up", "Migration direction: up or down")
		verbose     = flag.Bool("verbose", false, "Log each applied migration")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	dir, err := migrate.ParseDirection(*direction)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	if err := migrate.Run(*databaseURL, dir, logger); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			fmt.Println("no change")
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	fmt.Printf("migrated %s\n", dir)
}
