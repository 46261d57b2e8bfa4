package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/islandtrails/excursion-backend/internal/config"
	"github.com/islandtrails/excursion-backend/internal/database"
	"github.com/islandtrails/excursion-backend/internal/logger"
)

func main() {
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration timeout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: migrate [flags] up|down|status\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	command := flag.Arg(0)
	switch command {
	case "up":
		err = database.Migrate(ctx, db.DB.DB)
	case "down":
		err = database.MigrateDown(ctx, db.DB.DB)
	case "status":
		err = database.MigrationStatus(ctx, db.DB.DB)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.WithError(err).WithField("command", command).Fatal("Migration failed")
	}

	log.WithField("command", command).Info("Migration command finished")
}
