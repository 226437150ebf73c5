package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"campus-relay/config"
	"campus-relay/internal/repository"
	"campus-relay/pkg/database"

	"gorm.io/gorm"
)

const usage = `
Campus Relay - Database CLI Tool

Usage:
  migrate [command]

Commands:
  up          Create or update the relay tables and indexes
  status      Show database connection and table status
  seed-dev    Seed development users and subjects

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go seed-dev
`

func main() {
	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	cfg := config.LoadConfig()
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer database.Close(db)

	switch command {
	case "up":
		runMigrationsUp(db)
	case "status":
		showStatus(db)
	case "seed-dev":
		runSeedDevelopment(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func runMigrationsUp(db *gorm.DB) {
	log.Println("🚀 Running migrations UP...")

	if err := database.Migrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	log.Println("✅ Migrations completed successfully!")
}

func showStatus(db *gorm.DB) {
	log.Println("🔍 Checking database status...")

	if err := database.HealthCheck(context.Background(), db); err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	log.Println("✅ Database connection: OK")

	status, err := repository.SchemaStatus(db)
	if err != nil {
		log.Fatalf("❌ Failed to read schema: %v", err)
	}

	tables := make([]string, 0, len(status))
	for table := range status {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		if status[table] {
			log.Printf("✅ Table %-20s exists", table)
		} else {
			log.Printf("❌ Table %-20s does not exist", table)
		}
	}
}

func runSeedDevelopment(db *gorm.DB) {
	log.Println("🌱 Seeding database (development mode)...")

	result, err := database.SeedDev(context.Background(), db)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Println("📊 Seed Summary:")
	for _, p := range result.Profiles {
		log.Printf("   - User: %-12s %s", p.DisplayName, p.ID)
	}
	for ref, title := range result.Subjects {
		log.Printf("   - %s: %s", ref, title)
	}
	log.Println("✅ Development seeding completed!")
}
