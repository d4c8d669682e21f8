package main

import (
	"flag"
	"fmt"
	"os"

	"custodial-wallet-service/config"
	pgStorage "custodial-wallet-service/internal/adapter/storage/postgres"
	"custodial-wallet-service/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file")
		dir        = flag.String("path", "migrations", "path to migration files")
		command    = flag.String("command", "up", "up, down, or version")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	dsn := cfg.Database.DSN()

	switch *command {
	case "up":
		if err := pgStorage.RunMigrations(dsn, *dir); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
		log.Info().Msg("Migrations applied")
	case "down":
		if err := pgStorage.RollbackMigrations(dsn, *dir); err != nil {
			log.Fatal().Err(err).Msg("Rollback failed")
		}
		log.Info().Msg("Last migration rolled back")
	case "version":
		version, dirty, err := pgStorage.MigrationVersion(dsn, *dir)
		if err != nil {
			log.Fatal().Err(err).Msg("Version check failed")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Migration version")
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", *command)
		os.Exit(1)
	}
}
