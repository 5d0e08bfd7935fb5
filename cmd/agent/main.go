package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Fariz36/print-arkav/internal/agent"
	"github.com/Fariz36/print-arkav/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	copies := flag.Int("copies", 0, "copies per print job (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *copies > 0 {
		cfg.Agent.Copies = *copies
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if cfg.Agent.Token == "" {
		log.Fatal("agent token is required (set agent.token or ARKAV_AGENT_TOKEN)")
	}

	client := agent.NewClient(cfg.Agent.ServerURL, cfg.Agent.Token, cfg.Agent.ID)
	dispatcher := agent.NewLPDispatcher(cfg.Agent.Printer)

	a, err := agent.New(client, dispatcher, cfg.Agent.WorkDir, cfg.Agent.Copies, cfg.Agent.PollInterval.Std())
	if err != nil {
		log.Fatalf("failed to init agent: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("shutting down agent...")
		cancel()
	}()

	log.Printf("agent %s connecting to %s, printer %s", cfg.Agent.ID, cfg.Agent.ServerURL, cfg.Agent.Printer)
	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("agent error: %v", err)
	}
	log.Println("agent stopped")
}
