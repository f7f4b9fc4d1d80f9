package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"debt-collector/internal/auth"
	"debt-collector/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch worker and the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("no-worker", false, "Serve the API without running the periodic worker")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rootCtx = logger.With(rootCtx, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		return err
	}

	a, err := buildApp(rootCtx, cfg, log)
	if err != nil {
		log.Error("dialer init failed", "err", err)
		return err
	}
	defer a.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, a, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	if noWorker, _ := cmd.Flags().GetBool("no-worker"); !noWorker {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.worker.Start(rootCtx)
		}()
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	wg.Wait()
	return nil
}
