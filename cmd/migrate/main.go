package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"dealbroker/config"
	"dealbroker/pkg/database"
)

const usage = `
Deal Broker - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Apply all pending migrations
  down        Roll back migrations (all of them unless -steps is set)
  status      Show connection status and row counts of core tables
  version     Print the applied schema version

Flags:
  -steps int   Number of migrations to roll back with down (default 0 = all)

Examples:
  go run ./cmd/migrate up
  go run ./cmd/migrate down -steps 1
  go run ./cmd/migrate status
`

func main() {
	steps := flag.Int("steps", 0, "Number of migrations to roll back")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Config: %v", err)
	}
	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		runMigrationsUp(db)
	case "down":
		runMigrationsDown(db, *steps)
	case "status":
		showStatus(ctx, db)
	case "version":
		showVersion(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *sql.DB) {
	log.Println("🚀 Running migrations UP...")

	if err := database.MigrateUp(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func runMigrationsDown(db *sql.DB, steps int) {
	log.Println("⬇️  Rolling back migrations...")

	if err := database.MigrateDown(db, steps); err != nil {
		log.Fatalf("❌ Rollback failed: %v", err)
	}

	log.Println("✅ Rollback completed successfully!")
}

func showStatus(ctx context.Context, db *sql.DB) {
	log.Println("🔍 Checking database status...")

	if err := database.HealthCheck(ctx, db); err != nil {
		log.Fatalf("❌ Health check failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	tables := []string{"users", "tasks", "task_responses", "offer_dispatches", "interactions", "outbox_events"}
	for _, table := range tables {
		exists, err := database.TableExists(ctx, db, table)
		if err != nil {
			log.Printf("⚠️  Error checking table %s: %v", table, err)
			continue
		}
		if exists {
			count, _ := database.GetTableCount(ctx, db, table)
			log.Printf("✅ Table %-20s exists (%d rows)", table, count)
		} else {
			log.Printf("❌ Table %-20s does not exist", table)
		}
	}
}

func showVersion(db *sql.DB) {
	version, dirty, err := database.MigrationVersion(db)
	if err != nil {
		log.Fatalf("❌ Version lookup failed: %v", err)
	}
	if dirty {
		log.Printf("⚠️  Schema version %d is dirty", version)
		return
	}
	log.Printf("✅ Schema version %d", version)
}
