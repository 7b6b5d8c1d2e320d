// Command migrate applies the embedded schema migrations.
//
//	migrate up         apply all pending migrations
//	migrate down [n]   roll back n migrations (default 1)
//	migrate version    print the current schema version
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/bakehouse/api/internal/config"
	"github.com/bakehouse/api/internal/logging"
	"github.com/bakehouse/api/migrations"
	"github.com/go-faster/errors"
	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: migrate up | down [n] | version")
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat, "bakehouse-migrate")

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := migrations.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("open migrations")
	}
	defer m.Close()

	if err := run(m, flag.Args()); err != nil {
		log.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migrate")
	}
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info().Msg("no new migrations to apply")
				return nil
			}
			return err
		}
		log.Info().Msg("migrations applied")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return errors.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil {
			return err
		}
		log.Info().Int("steps", steps).Msg("migrations rolled back")

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			if errors.Is(err, migrate.ErrNilVersion) {
				log.Info().Msg("no migrations applied")
				return nil
			}
			return err
		}
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")

	default:
		flag.Usage()
		return errors.Errorf("unknown command %q", args[0])
	}
	return nil
}
