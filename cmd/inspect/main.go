package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"duo-chat/internal"
	"duo-chat/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
)

func main() {
	dbPath := flag.String("db", defaultPath(), "Path to badger DB")
	prefix := flag.String("prefix", "conv:pair:", "Prefix to scan (user:, conv:, msg:, or empty for everything)")
	limit := flag.Int("limit", 200, "Maximum number of rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	rows, err := internal.Scan(db, *prefix, repositories.InspectRecord, *limit)
	if err != nil {
		log.Fatal(err)
	}
	internal.Render(os.Stdout, rows)
	fmt.Printf("\n%d row(s) under %q\n", len(rows), *prefix)
}

// defaultPath prefers BADGER_FILEPATH over the sdk debug location.
func defaultPath() string {
	if path := os.Getenv("BADGER_FILEPATH"); path != "" {
		return path
	}
	return database.DefaultPath
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed server leaves a vlog to truncate, which read-only mode refuses
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
