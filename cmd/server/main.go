package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fariz36/print-arkav/internal/api"
	"github.com/Fariz36/print-arkav/internal/config"
	"github.com/Fariz36/print-arkav/internal/db"
	"github.com/Fariz36/print-arkav/internal/queue"
	"github.com/Fariz36/print-arkav/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.Auth.AgentToken == "" {
		log.Printf("warning: no agent token configured, agent endpoints will refuse to serve")
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	users := db.NewUserOperations(database)
	if err := db.SeedDefaultUsers(context.Background(), users, cfg.Auth.DefaultUsers); err != nil {
		log.Fatalf("failed to seed default users: %v", err)
	}

	store, err := storage.New(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("failed to init payload store: %v", err)
	}

	q := queue.New(db.NewJobOperations(database), store, &cfg.Uploads)

	router, err := api.NewRouter(cfg, users, q)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		log.Printf("server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
	log.Println("server stopped")
}
