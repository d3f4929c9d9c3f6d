package report

import (
	"fmt"
	"log"
	"os"
	"time"

	"tvms/managers"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func mustDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN not set in env")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	return gdb
}

// RunCollections prints the collection totals for one month (YYYY-MM, UTC)
// and optionally lists the individual payments.
func RunCollections(month string, list bool) {
	pm := managers.NewPaymentManager(mustDBFromEnv())

	t, err := time.Parse("2006-01", month)
	if err != nil {
		log.Fatalf("invalid month format, expected YYYY-MM: %v", err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	stats, err := pm.TotalCollections(&start, &end)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}

	fmt.Printf("Collections for month=%s (UTC):\n", month)
	fmt.Printf("  payments=%d total=%.2f avg=%.2f min=%.2f max=%.2f\n",
		stats.TotalPayments, stats.TotalCollected, stats.AvgPayment, stats.MinPayment, stats.MaxPayment)

	if list {
		rows, err := pm.ByDateRange(start, end)
		if err != nil {
			log.Fatalf("fetch rows failed: %v", err)
		}
		for _, p := range rows {
			fmt.Printf("%d|%s|%s|%.2f|%s|%s\n",
				p.PaymentID, p.TransactionID, p.VehicleNumber, p.AmountPaid,
				p.PaymentMethod, p.PaymentDate.Format(time.RFC3339))
		}
	}
}
