package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/go-tollgate/tollgate/internal/config"
	"github.com/go-tollgate/tollgate/internal/handlers"
	"github.com/go-tollgate/tollgate/internal/metrics"
	"github.com/go-tollgate/tollgate/internal/store"
	"github.com/go-tollgate/tollgate/internal/version"

	"github.com/appleboy/graceful"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		version.PrintVersion()
		return
	}

	cfg := config.Load()

	s, err := store.New(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}

	recorder := metrics.Init(cfg.MetricsEnabled)

	router, err := handlers.NewRouter(handlers.RouterOptions{
		Config:     cfg,
		Store:      s,
		Metrics:    recorder,
		ConsentURL: cfg.ConsentURL,
		// The password grant stays disabled until an Authenticator is
		// wired in; deployments embed this server and supply their own.
		Authenticator: nil,
	})
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	log.Printf("OAuth server starting on %s", cfg.ServerAddr)
	log.Printf("Authorization endpoint: %s%s", cfg.BaseURL, cfg.AuthorizePath)
	log.Printf("Token endpoint: %s%s", cfg.BaseURL, cfg.AccessTokenPath)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	m := graceful.NewManager()

	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Failed to start server: %v", err)
			}
		}()
		<-ctx.Done()
		return nil
	})

	m.AddShutdownJob(func() error {
		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server forced to shutdown: %v", err)
			return err
		}

		log.Println("Server exited")
		return nil
	})

	<-m.Done()
}
