package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/botiquin/botiquin-backend/internal/seed"
	"github.com/botiquin/botiquin-backend/pkg/config"
	"github.com/botiquin/botiquin-backend/pkg/database"
	"github.com/botiquin/botiquin-backend/pkg/logger"
)

func main() {
	reset := flag.Bool("reset", false, "empty all tables before loading")
	flag.Parse()

	cfg, err := config.Load("seed")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if cfg.IsProductionLike() {
		fmt.Fprintf(os.Stderr, "refusing to seed a %s database\n", cfg.Server.Environment)
		os.Exit(1)
	}

	log := logger.New("seed", cfg.Server.Environment)

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	loader := seed.NewLoader(db, log)
	if *reset {
		if err := loader.Reset(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to reset tables")
		}
	}

	if _, err := loader.Load(ctx, time.Now()); err != nil {
		log.Fatal().Err(err).Msg("failed to load demo data")
	}

	creds := seed.Credentials()
	names := make([]string, 0, len(creds))
	for name := range creds {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("seeded %s\n", cfg.Database.Redacted())
	fmt.Println("demo credentials:")
	for _, name := range names {
		fmt.Printf("  %-12s %s\n", name, creds[name])
	}
}
