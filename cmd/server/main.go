// ListSync - Shared Shopping Lists with Real-Time Collaboration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/listsync

// Package main is the entry point for the ListSync server.
//
// ListSync serves shared shopping lists over a REST API and pushes every
// change to the other members' open WebSocket connections.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional config.yaml, environment (Koanf v2)
//  2. Store: BadgerDB holding users, lists, memberships and items
//  3. Lookup guard: circuit breaker in front of handshake lookups
//  4. Authentication: HS256 JWTs issued at login
//  5. Realtime: connection manager plus the broadcaster the handlers notify
//  6. HTTP server: chi router with REST, WebSocket and metrics routes
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains,
// every WebSocket is closed with 1001 (going away) and the store is closed.
//
// # Example Usage
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export BADGER_PATH=/var/lib/listsync
//	./listsync
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/listsync/internal/api"
	"github.com/tomtom215/listsync/internal/auth"
	"github.com/tomtom215/listsync/internal/authz"
	"github.com/tomtom215/listsync/internal/config"
	"github.com/tomtom215/listsync/internal/logging"
	"github.com/tomtom215/listsync/internal/realtime"
	"github.com/tomtom215/listsync/internal/store"
	"github.com/tomtom215/listsync/internal/supervisor"
	"github.com/tomtom215/listsync/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Bool("db_in_memory", cfg.Database.InMemory).
		Msg("Starting ListSync with supervisor tree")

	st, err := store.Open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()

	guard := store.NewGuard(st, cfg.Breaker, cfg.Security.LookupTimeout)

	tokens, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	authn := auth.NewAuthenticator(tokens, guard, cfg.Security.LookupTimeout)

	policy, err := authz.NewEnforcer()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization policy")
	}

	manager := realtime.NewManager(authn, guard, realtime.OptionsFromConfig(cfg.Realtime))
	broadcaster := realtime.NewBroadcaster()
	if err := manager.SetAsActiveBackend(broadcaster); err != nil {
		logging.Fatal().Err(err).Msg("Failed to attach realtime backend")
	}

	chiMW := api.NewChiMiddlewareFromConfig(&cfg.Security)
	handler := api.NewHandler(api.HandlerDeps{
		Store:    st,
		Guard:    guard,
		Tokens:   tokens,
		Policy:   policy,
		Notifier: broadcaster,
		Realtime: manager,
		Chi:      chiMW,
	})
	router := api.NewRouter(handler, chiMW, authn)

	// No WriteTimeout: hijacked WebSocket connections set their own deadlines.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	if cfg.Database.GCInterval > 0 && !cfg.Database.InMemory {
		tree.AddDataService(services.NewStoreGCService(st, cfg.Database.GCInterval, cfg.Database.GCRatio))
	}
	tree.AddRealtimeService(services.NewRealtimeService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	// errCh receives exactly one value and is never closed.
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("ListSync stopped")
}
