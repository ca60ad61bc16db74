// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/danielhkuo/huddle-plan/auth"
	"github.com/danielhkuo/huddle-plan/cliparse"
	"github.com/danielhkuo/huddle-plan/db"
	"github.com/danielhkuo/huddle-plan/hub"
	"github.com/danielhkuo/huddle-plan/router"
	"github.com/danielhkuo/huddle-plan/session"
)

func main() {
	var err error

	// .env is a dev convenience; absence is fine
	_ = godotenv.Load()

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL when configured; without it the engine runs
	// ephemeral and sessions die with the process.
	var snapshots session.SnapshotStore
	if !cfg.Ephemeral() {
		dbConn, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		defer dbConn.Close()

		// Verify connection
		if err := dbConn.Ping(); err != nil {
			slog.Error("database ping failed", "error", err)
			os.Exit(1)
		}

		// Create schema (tables)
		if err := db.CreateSchema(dbConn); err != nil {
			slog.Error("schema creation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Database schema ready")

		snapshots = db.NewSnapshotStore(dbConn)
	} else {
		slog.Warn("no DATABASE_URL configured, running ephemeral")
	}

	// Wire the engine: store, hub, auth
	store := session.NewStore(session.Config{
		Snapshots:       snapshots,
		AllowSpectators: cfg.AllowSpectators,
	})
	connectionHub := hub.NewHub(store, cfg.HeartbeatTimeout())
	store.SetBroadcaster(connectionHub)

	if err := store.Restore(context.Background()); err != nil {
		slog.Error("snapshot restore failed", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier(cfg.AuthTokenSecret)

	// Create router
	mux := router.NewRouter(store, connectionHub, verifier)

	// Create server
	server := http.Server{
		Handler: mux,
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}

	// Flush final snapshots before exit
	store.Close()
}
