// migrate runs DB migrations from embedded SQL against the configured document database.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"academia-identity/backend/internal/config"
	"academia-identity/backend/internal/db"
	"academia-identity/backend/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	url, err := db.MigrateURL(cfg.DocstoreDriver, cfg.DSN())
	if err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}

	if err := migrate.Run(url, *direction); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			// Already at target version; success.
			return
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
