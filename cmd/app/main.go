package main

import (
	"context"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/fegerV/Stogram-sub001/internal/config"
	"github.com/fegerV/Stogram-sub001/internal/repository/cache"
	"github.com/fegerV/Stogram-sub001/internal/repository/database"
	"github.com/fegerV/Stogram-sub001/internal/server"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		return
	}

	ctx := context.Background()

	if err := cache.NewRedisClient(ctx, cfg.Redis.Addr()); err != nil {
		log.Fatal(err)
	}
	slog.Info("Redis inited")

	if err := database.NewPostgresClient(ctx, cfg.Database.DSN()); err != nil {
		log.Fatal(err)
	}
	slog.Info("Database inited")

	if err := goose.SetDialect("postgres"); err != nil {
		slog.Error("Failed to set dialect (migrations)", "error", err)
		return
	}

	migrationsPath := filepath.Join("internal", "repository", "database", "migrations")
	if err := goose.Up(database.Client().DB, migrationsPath); err != nil {
		slog.Error("Failed to migrate up", "error", err)
		return
	}
	slog.Info("Migrations completed")

	srv := server.NewServer(cfg)
	if err := srv.Run(":" + cfg.App.Port); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}
}
