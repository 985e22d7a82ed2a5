package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status|version|redo|reset]

import (
	"context"
	"flag"
	"log"
	"os"

	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/storage/db"
)

func main() {
	flag.Parse()
	command := flag.Arg(0)

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.RunCommand(ctx, sqlDB, command); err != nil {
		log.Printf("migrate %s: %v", command, err)
		os.Exit(1)
	}
}
