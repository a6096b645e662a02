package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gueststay/internal/config"
	"gueststay/internal/database"
	"gueststay/internal/database/schema"
	"gueststay/internal/eventstore"
	"gueststay/internal/modules/gueststay"
	"gueststay/internal/repository"
)

// rebuild_projections replays every guest stay stream into the read model.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.EventStore != config.EventStoreSQL {
		log.Fatal("rebuild_projections needs EVENT_STORE=sql")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	if err := schema.Migrate(db); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := gueststay.NewService(eventstore.NewSQLStore(db), repository.NewStayDetailsRepository(db), nil, nil, nil, gueststay.Options{})
	n, err := svc.RebuildProjections(ctx)
	if err != nil {
		log.Fatalf("rebuild failed after %d stays: %v", n, err)
	}

	log.Printf("rebuild completed: stays=%d", n)
}
