// Bulk violation importer: scans a drop directory of CSV files (or watches
// it) and registers a violation per row.
package main

import (
	"flag"
	"log"
	"os"

	"tvms/managers"
	"tvms/process/bulkimport"

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

func main() {
	dir := flag.String("dir", "import", "directory to scan for violation CSV files")
	watch := flag.Bool("watch", false, "watch directory for new files")
	workers := flag.Int("workers", 4, "worker pool size")
	flag.Parse()

	r := &bulkimport.Runner{
		Violations: managers.NewViolationManager(mustDBFromEnv()),
		Dir:        *dir,
		Workers:    *workers,
	}
	if *watch {
		if err := r.Watch(); err != nil {
			log.Fatalf("watch: %v", err)
		}
		return
	}
	r.Scan()
}
