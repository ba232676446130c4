// cmd/seeder/main.go
package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/unclebandit/reminder-scheduler/internal/config"
	"github.com/unclebandit/reminder-scheduler/internal/db"
	"github.com/unclebandit/reminder-scheduler/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DSN(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	dir := "seed"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	seedFiles := []string{
		"customers.sql",
		"invoices.sql",
		"preferences.sql",
		"campaigns.sql",
	}

	for _, name := range seedFiles {
		file := filepath.Join(dir, name)
		content, err := os.ReadFile(file)
		if err != nil {
			log.WithError(err).WithField("file", file).Fatal("failed to read seed file")
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.WithError(err).WithField("file", file).Fatal("failed to execute seed file")
		}
		log.WithField("file", file).Info("seeded")
	}

	log.Info("database seeding completed")
}
