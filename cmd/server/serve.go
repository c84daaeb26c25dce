package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/myoutlet-admin/backend"
	"github.com/jrsteele09/myoutlet-admin/internal/config"
	"github.com/jrsteele09/myoutlet-admin/internal/errors"
	"github.com/jrsteele09/myoutlet-admin/internal/metrics"
	"github.com/jrsteele09/myoutlet-admin/kvstore"
	_ "github.com/jrsteele09/myoutlet-admin/kvstore/bolt"
	_ "github.com/jrsteele09/myoutlet-admin/kvstore/memory"
	_ "github.com/jrsteele09/myoutlet-admin/kvstore/sqlite"
	"github.com/jrsteele09/myoutlet-admin/server"
	"github.com/jrsteele09/myoutlet-admin/server/authflowrepo"
	"github.com/jrsteele09/myoutlet-admin/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var flags struct {
	port, env, baseURL, dataFolder, logLevel string
	backendURL, storageDriver, storagePath   string
	signInMode                               string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.LoaderOptions{
			ConfigPath:    configPath,
			FlagOverrides: flagOverrides(cmd),
		})
		if err != nil {
			return err
		}
		setupLogging(cfg)
		return run(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	f := serveCmd.Flags()
	f.StringVarP(&flags.port, "port", "p", "", "Port to listen on")
	f.StringVar(&flags.env, "env", "", "Environment (DEV, PROD)")
	f.StringVar(&flags.baseURL, "base-url", "", "Externally visible URL of this server")
	f.StringVar(&flags.dataFolder, "data-dir", "", "Directory for persistent data")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	f.StringVar(&flags.backendURL, "backend-url", "", "Base URL of the restaurant backend")
	f.StringVar(&flags.storageDriver, "storage-driver", "", "Session storage driver (bolt, sqlite, memory)")
	f.StringVar(&flags.storagePath, "storage-path", "", "Session storage file")
	f.StringVar(&flags.signInMode, "sign-in-mode", "", "Google sign-in mode (broker, oidc)")
}

// flagOverrides passes on only the flags given on the command line.
func flagOverrides(cmd *cobra.Command) config.FlagOverrides {
	set := func(name string, v *string) *string {
		if cmd.Flags().Changed(name) {
			return v
		}
		return nil
	}
	return config.FlagOverrides{
		Port:          set("port", &flags.port),
		Env:           set("env", &flags.env),
		BaseURL:       set("base-url", &flags.baseURL),
		DataFolder:    set("data-dir", &flags.dataFolder),
		LogLevel:      set("log-level", &flags.logLevel),
		BackendURL:    set("backend-url", &flags.backendURL),
		StorageDriver: set("storage-driver", &flags.storageDriver),
		StoragePath:   set("storage-path", &flags.storagePath),
		SignInMode:    set("sign-in-mode", &flags.signInMode),
	}
}

func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func run(cfg config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.Wrapf(errors.ErrInternal, "[run] panic: %v", r)
		}
	}()

	displayAppname(cfg.GetAppName())
	log.Info().
		Str("env", cfg.GetEnv()).
		Str("backend", cfg.GetBackendURL()).
		Str("sign_in_mode", cfg.GetSignInMode()).
		Stringer("cors_origins", cfg.GetAllowedOrigins()).
		Msg("Starting")

	durable, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer durable.Close()

	m := metrics.New()
	authAPI := backend.NewAuthAPI(cfg.GetBackendURL())
	manager := sessions.NewManager(durable, authAPI, sessions.Options{
		BackendURL:     cfg.GetBackendURL(),
		RefreshTimeout: cfg.GetRefreshTimeout(),
		RequestTimeout: cfg.GetRequestTimeout(),
		IdleTimeout:    cfg.GetSessionIdleTimeout(),
		MaxAge:         cfg.GetMaxSessionAge(),
		RoutingDelay:   cfg.GetRoutingDelay(),
		InitWait:       cfg.GetGuardInitWait(),
		Routes:         server.GuardRoutes(cfg),
		Metrics:        m,
	})
	defer manager.Close()

	srv := server.New(cfg, manager, authAPI, authflowrepo.NewInMemoryRepo(), m)
	stopPrune := make(chan struct{})
	defer close(stopPrune)
	go srv.PruneAuthFlows(time.Minute, stopPrune)

	httpServer := &http.Server{
		Addr:              cfg.GetPort(),
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		done <- listenAndServe(httpServer)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
		return shutdown(httpServer)
	case err := <-done:
		return err
	}
}

// openStorage opens the configured session store, sealed when a storage key is set.
func openStorage(cfg config.Config) (kvstore.Store, error) {
	path := cfg.GetStoragePath()
	if cfg.GetStorageDriver() != "memory" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	store, err := kvstore.Open(kvstore.DriverConfig{Driver: cfg.GetStorageDriver(), Path: path})
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.GetStorageDriver()).Str("path", path).Msg("Session storage opened")

	if cfg.GetStorageKey() == "" {
		if cfg.GetEnv() != "DEV" {
			log.Warn().Msg("STORAGE_KEY is not set, tokens are stored unsealed")
		}
		return store, nil
	}
	key, err := hex.DecodeString(cfg.GetStorageKey())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("STORAGE_KEY must be hex encoded: %w", err)
	}
	sealed, err := kvstore.NewSealed(store, key)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return sealed, nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
