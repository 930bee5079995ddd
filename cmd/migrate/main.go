package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"

	"github.com/quizarena/quizarena-backend/internal/config"
	"github.com/quizarena/quizarena-backend/internal/logger"
)

func main() {
	var migrationDir string
	flag.StringVar(&migrationDir, "path", "migrations", "Path to migration files")
	flag.Usage = printUsage
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "migrate").Logger()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	m, err := migrate.New("file://"+migrationDir, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("path", migrationDir).Msg("Migration failed to initialize")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Close failed")
		}
	}()

	switch cmd := args[0]; cmd {
	case "up":
		apply(log, "up", m.Up())
	case "down":
		apply(log, "down", m.Down())
	case "steps":
		n := intArg(args, "steps")
		apply(log.With().Int("steps", n).Logger(), "steps", m.Steps(n))
	case "force":
		v := intArg(args, "force")
		if err := m.Force(v); err != nil {
			log.Fatal().Err(err).Int("version", v).Msg("Force failed")
		}
		log.Info().Int("version", v).Msg("Forced version")
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info().Msg("No migrations applied")
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Version failed")
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current version")
	default:
		log.Error().Str("command", cmd).Msg("Unknown command")
		printUsage()
		os.Exit(2)
	}
}

// apply reports the outcome of a schema change. ErrNoChange is not a failure.
func apply(log zerolog.Logger, cmd string, err error) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info().Str("command", cmd).Msg("No change")
	case err != nil:
		log.Fatal().Err(err).Str("command", cmd).Msg("Migration failed")
	default:
		log.Info().Str("command", cmd).Msg("Migration applied")
	}
}

func intArg(args []string, cmd string) int {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "%s requires a number argument\n", cmd)
		os.Exit(2)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid number %q: %v\n", args[1], err)
		os.Exit(2)
	}
	return n
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [flags] <command>")
	fmt.Fprintln(os.Stderr, "Commands: up, down, steps <n>, version, force <version>")
	fmt.Fprintln(os.Stderr, "Flags:")
	flag.PrintDefaults()
}
