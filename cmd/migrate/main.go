package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/crm-electoral-api/internal/config"
	"github.com/crm-electoral-api/internal/database"
	"github.com/crm-electoral-api/pkg/logger"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: migrate [-path ./migrations] <command>

commands:
  up          apply all pending migrations
  down        roll back every migration
  goto <n>    migrate up or down to version n`)
}

func main() {
	log := logger.New()

	path := flag.String("path", "", "migrations directory (defaults to MIGRATIONS_PATH)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *path == "" {
		*path = cfg.Server.MigrationsPath
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = db.RunMigrations(*path)
	case "down":
		err = db.MigrateDown(*path)
	case "goto":
		if flag.NArg() < 2 {
			usage()
			os.Exit(2)
		}
		var version uint64
		version, err = strconv.ParseUint(flag.Arg(1), 10, 32)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid version")
		}
		err = db.MigrateToVersion(*path, uint(version))
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Str("path", *path).Msg("Migration failed")
	}
}
