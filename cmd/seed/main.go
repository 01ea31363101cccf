package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"community-subscription-bot/internal/config"
	"community-subscription-bot/internal/domain/model"
	pg "community-subscription-bot/internal/infra/db/postgres"
	"community-subscription-bot/internal/infra/logging"
	"community-subscription-bot/internal/usecase"
)

func strPtr(s string) *string { return &s }

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	materials := usecase.NewMaterialUseCase(pg.NewMaterialRepo(pool), logger)

	// Only seed an empty catalogue.
	existing, err := materials.List(ctx, model.MaterialFilter{Limit: 1})
	if err != nil {
		logger.Fatal().Err(err).Msg("list materials")
	}
	if len(existing) > 0 {
		logger.Info().Msg("materials already present, nothing to do")
		return
	}

	seed := []*model.Material{
		{
			Title:       "Welcome to the community",
			Description: "How the channel and the chat work, and where to start.",
			Content:     "Read the pinned post in the channel first. Questions go to the chat.",
			Format:      "article",
			Category:    "getting-started",
		},
		{
			Title:       "Weekly review #1",
			Description: "Recording of the first weekly review session.",
			Format:      "video",
			Category:    "reviews",
			VideoURL:    strPtr("https://example.com/videos/weekly-1"),
		},
		{
			Title:       "Checklist",
			Description: "A one-page checklist to keep next to you.",
			Content:     "1. Plan the week\n2. Review on Friday\n3. Share results in the chat",
			Format:      "checklist",
			Category:    "getting-started",
		},
	}
	for _, m := range seed {
		created, err := materials.Create(ctx, m)
		if err != nil {
			logger.Fatal().Err(err).Str("title", m.Title).Msg("create material")
		}
		logger.Info().Int64("id", created.ID).Str("title", created.Title).Msg("material created")
	}
}
