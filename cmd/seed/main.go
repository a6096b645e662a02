package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gueststay/internal/config"
	"gueststay/internal/database"
	"gueststay/internal/database/schema"
	"gueststay/internal/eventstore"
	"gueststay/internal/modules/gueststay"
	"gueststay/internal/repository"
)

// seed checks a handful of guests in through the command service so the
// event log and the read model start out consistent.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}

	log.Println("Running AutoMigrate...")
	if err := schema.Migrate(db); err != nil {
		log.Fatal("AutoMigrate failed:", err)
	}

	ctx := context.Background()
	svc := gueststay.NewService(eventstore.NewSQLStore(db), repository.NewStayDetailsRepository(db), nil, nil, nil, gueststay.Options{})

	for i := 1; i <= 6; i++ {
		guestID := fmt.Sprintf("guest-%03d", i)
		roomID := fmt.Sprintf("room-%d", 100+i)

		id, _, err := svc.CheckIn(ctx, guestID, roomID)
		if err != nil {
			log.Printf("skip %s/%s: %v", guestID, roomID, err)
			continue
		}

		var total decimal.Decimal
		charges := 1 + rand.Intn(3)
		for n := 0; n < charges; n++ {
			amount := decimal.NewFromInt(int64(20 + rand.Intn(180)))
			if err := svc.RecordCharge(ctx, id, uuid.NewString(), amount); err != nil {
				log.Fatalf("charge %s: %v", id, err)
			}
			total = total.Add(amount)
		}

		// Every other guest settles and leaves.
		if i%2 == 0 {
			if err := svc.RecordPayment(ctx, id, uuid.NewString(), total); err != nil {
				log.Fatalf("payment %s: %v", id, err)
			}
			out, err := svc.CheckOut(ctx, id, "")
			if err != nil {
				log.Fatalf("checkout %s: %v", id, err)
			}
			log.Printf("%s checked out=%t", id, out.CheckedOut)
			continue
		}
		log.Printf("%s open, balance=-%s", id, total)
	}

	log.Println("Seed completed")
}
