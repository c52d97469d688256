// cmd/dbtools/migrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dbPath         = flag.String("db", "build/db/shuttlers.db", "Path to SQLite database")
		migrationsPath = flag.String("migrations", "internal/db/migrations", "Path to migrations directory")
		command        = flag.String("command", "", "Command to run (up, down, steps, force, version)")
		arg            = flag.String("n", "", "Step count for steps, version for force")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database directory")
	}

	absMigrations, err := filepath.Abs(*migrationsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to resolve migrations path")
	}

	m, err := migrate.New("file://"+filepath.ToSlash(absMigrations), "sqlite3://"+*dbPath+"?_fk=1")
	if err != nil {
		log.Fatal().Err(err).Msg("Migration init failed")
	}
	defer m.Close()

	logger := log.With().Str("command", *command).Str("db", *dbPath).Logger()

	switch *command {
	case "up":
		err = ignoreNoChange(m.Up())
	case "down":
		err = ignoreNoChange(m.Down())
	case "steps":
		var n int
		if n, err = strconv.Atoi(*arg); err != nil || n == 0 {
			logger.Fatal().Str("n", *arg).Msg("steps requires a non-zero -n")
		}
		err = ignoreNoChange(m.Steps(n))
	case "force":
		var v int
		if v, err = strconv.Atoi(*arg); err != nil {
			logger.Fatal().Str("n", *arg).Msg("force requires -n <version>")
		}
		err = m.Force(v)
	case "version":
	default:
		logger.Fatal().Msg("Unknown command")
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Migration failed")
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		logger.Fatal().Err(err).Msg("Get version failed")
	}
	fmt.Printf("Version: %d, Dirty: %v\n", version, dirty)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
