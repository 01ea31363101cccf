package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/config"
	pg "community-subscription-bot/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] [-steps n] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	dsn := cfg.Database.URL

	switch flag.Arg(0) {
	case "up":
		if err := pg.Migrate(dsn); err != nil {
			logger.Fatal().Err(err).Msg("migrate up")
		}
	case "down":
		if err := pg.MigrateDown(dsn, *steps); err != nil {
			logger.Fatal().Err(err).Msg("migrate down")
		}
	case "version":
	default:
		flag.Usage()
		os.Exit(2)
	}

	v, dirty, err := pg.MigrationVersion(dsn)
	if err != nil {
		logger.Fatal().Err(err).Msg("read version")
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
}
