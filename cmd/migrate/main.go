package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/config"
	"github.com/FuNgaiKa/stock-analysis-sub000/internal/infrastructure/logging"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	migrationsPath := flag.String("dir", "db/migrations", "path to migrations directory")
	flag.Parse()

	bootLog := zerolog.New(os.Stderr)
	cfg, err := config.LoadFromFile(*cfgPath)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("load config")
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("init logger")
	}

	if cfg.DB.DSN == "" {
		log.Fatal().Msg("db.dsn is not set, cannot run migrations")
	}

	absDir, err := filepath.Abs(*migrationsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve migrations dir")
	}
	files, err := filepath.Glob(filepath.Join(absDir, "*.sql"))
	if err != nil {
		log.Fatal().Err(err).Msg("list migrations")
	}
	if len(files) == 0 {
		log.Fatal().Str("dir", absDir).Msg("no .sql migration files found")
	}
	sort.Strings(files)

	db, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			log.Fatal().Err(err).Str("file", f).Msg("read migration")
		}
		log.Info().Str("file", filepath.Base(f)).Msg("applying migration")
		if _, err := db.ExecContext(ctx, string(sqlBytes)); err != nil {
			log.Fatal().Err(err).Str("file", filepath.Base(f)).Msg("migration failed")
		}
	}

	log.Info().Int("files", len(files)).Msg("migrations complete")
}
