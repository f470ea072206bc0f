package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/config"
	"github.com/rl1809/library-lending/internal/core/domain"
	"github.com/rl1809/library-lending/internal/core/service"
	"github.com/rl1809/library-lending/internal/port"
)

const (
	initialStock  = 20
	totalRequests = 50
)

type store interface {
	port.BookRepository
	port.BorrowerRepository
	port.LoanRepository
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}

	bookService := service.NewBookService(db)
	borrowerService := service.NewBorrowerService(db)
	lendingService := service.NewLendingService(db, db)

	// Seed one book and one borrower per request
	run := time.Now().Format("20060102150405.000")
	book, err := bookService.Create(ctx, domain.NewBook{
		Title:         "Stress Test " + run,
		Author:        "Load Generator",
		Quantity:      initialStock,
		ShelfLocation: "STRESS",
	})
	if err != nil {
		log.Fatalf("failed to create book: %v", err)
	}

	borrowerIDs := make([]string, totalRequests)
	for i := range borrowerIDs {
		b, err := borrowerService.Create(ctx, domain.NewBorrower{
			Name:  fmt.Sprintf("reader-%d", i),
			Email: fmt.Sprintf("reader-%d-%s@stress.test", i, run),
		})
		if err != nil {
			log.Fatalf("failed to create borrower: %v", err)
		}
		borrowerIDs[i] = b.ID
	}

	// Counters
	var successCount atomic.Int32
	var outOfStockCount atomic.Int32
	var errorCount atomic.Int32

	// Spawn concurrent checkouts
	var wg sync.WaitGroup
	start := time.Now()

	for _, borrowerID := range borrowerIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := lendingService.Checkout(ctx, book.ID, borrowerID)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrOutOfStock):
				outOfStockCount.Add(1)
			default:
				errorCount.Add(1)
				log.Printf("checkout failed: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	outOfStock := outOfStockCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Store:            %s\n", cfg.DBDriver)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Checked Out:      %d\n", success)
	fmt.Printf("Out Of Stock:     %d\n", outOfStock)
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == initialStock && outOfStock == totalRequests-initialStock {
		fmt.Printf("PASS: Exactly %d checkouts succeeded, %d were out of stock\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d checked out/%d out of stock, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, outOfStock)
	}

	// Verify final quantity in the store
	final, err := bookService.Get(ctx, book.ID)
	if err != nil {
		log.Fatalf("failed to read book: %v", err)
	}
	fmt.Printf("Final Quantity:   %d\n", final.Quantity)

	if final.Quantity == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected quantity 0, got %d\n", final.Quantity)
	}
}

func openStore(ctx context.Context, cfg config.Config) (store, error) {
	if cfg.DBDriver == config.DriverMemory {
		return storage.NewMemoryAdapter(), nil
	}

	db, err := storage.OpenSQL(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}

	adapter := storage.NewSQLAdapter(db)
	if cfg.DBMigrate {
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return adapter, nil
}
