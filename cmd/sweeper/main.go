package main

// Delete documents past their retention date:
//   go run ./cmd/sweeper          (loop every SWEEP_INTERVAL)
//   go run ./cmd/sweeper -once    (single pass, e.g. from cron)

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"legaldoc-backend/internal/bootstrap"
	"legaldoc-backend/internal/shared/config"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/sweeper"
)

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	if err := telemetry.Init(telemetry.OptionsFromEnv()); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer telemetry.Sync()

	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := sweeper.New(app.DocumentsService, cfg.SweepEvery())
	if *once {
		if _, err := s.RunOnce(ctx); err != nil {
			os.Exit(1)
		}
		return
	}
	if err := s.Run(ctx); err != nil {
		log.Printf("sweeper stopped: %v", err)
		os.Exit(1)
	}
}
