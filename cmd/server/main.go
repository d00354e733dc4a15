package main

import (
	"context"
	"errors"
	"hlstaild/internal/api"
	"hlstaild/internal/config"
	"hlstaild/internal/fetch"
	"hlstaild/internal/logger"
	"hlstaild/internal/session"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := config.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "hlstaild",
		Short:         "Serve live HLS playlist tail sessions over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v, configFile)
		},
	}

	flags := rootCmd.Flags()
	flags.StringP("listen", "l", ":8080", "HTTP listen address")
	flags.StringP("log-level", "L", "info", "Log level (error, warn, info, debug)")
	flags.String("log-format", "json", "Log format (json, text)")
	flags.StringVarP(&configFile, "config", "c", "", "Path to an optional config file")
	_ = v.BindPFlag("server.listen_addr", flags.Lookup("listen"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log_format", flags.Lookup("log-format"))

	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(v *viper.Viper, configFile string) error {
	// 1. Load configuration
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	// 2. Initialize logger
	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	log.Infof("Starting HLS tail daemon...")
	log.Infof("Log level set to: %s", cfg.LogLevel)

	// 3. Initialize services and managers
	client := fetch.NewClient(log, cfg.Fetch.UserAgent, cfg.Fetch.RequestTimeout)
	sessionMgr := session.NewManager(log, cfg.Session, client, cfg.Server.JournalSize, cfg.Server.EvictionInterval)
	sessionMgr.Start()

	// 4. Set up API router with dependencies
	router := api.New(sessionMgr, log)

	// 5. Set up and run the HTTP server with graceful shutdown
	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("Server starting on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Listen for shutdown signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
		log.Infof("Server is shutting down...")
	case err := <-serveErr:
		sessionMgr.Stop()
		log.Errorf("Could not listen on %s: %v", cfg.Server.ListenAddr, err)
		return err
	}

	// Create a context with a timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Stop background services
	sessionMgr.Stop()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
		return err
	}

	log.Infof("Server exited gracefully")
	return nil
}
