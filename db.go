package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"tvms/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// initDB opens the postgres handle every manager is constructed over,
// migrates the schema, and seeds the reference tables.
func initDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DB_DSN is not set; this service requires a Postgres DSN in DB_DSN")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	// Control schema migrations with env DB_AUTO_MIGRATE (default true).
	shouldMigrate := true
	if v := strings.ToLower(os.Getenv("DB_AUTO_MIGRATE")); v == "false" || v == "0" || v == "no" {
		shouldMigrate = false
	}
	if shouldMigrate {
		if err := migrateDB(db); err != nil {
			return nil, err
		}
	}
	seedDB(db)
	return db, nil
}

func migrateDB(db *gorm.DB) error {
	// Reference tables first so the violation FKs can be applied safely.
	for _, m := range []any{
		&models.User{},
		&models.ViolationType{},
		&models.Area{},
		&models.Violation{},
		&models.Payment{},
		&models.Evidence{},
	} {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}

// seedDB fills the reference tables and ensures an admin account exists.
// Every step is idempotent.
func seedDB(db *gorm.DB) {
	types := []models.ViolationType{
		{TypeName: "Speeding", BaseFine: 1000, Description: "Exceeding the posted speed limit"},
		{TypeName: "Signal Jump", BaseFine: 1500, Description: "Crossing an intersection against a red signal"},
		{TypeName: "No Parking", BaseFine: 500, Description: "Parking in a no-parking zone"},
		{TypeName: "Drunk Driving", BaseFine: 10000, Description: "Driving under the influence"},
		{TypeName: "No Helmet", BaseFine: 500, Description: "Riding a two-wheeler without a helmet"},
		{TypeName: "Wrong Side Driving", BaseFine: 2000, Description: "Driving against the flow of traffic"},
		{TypeName: "No Seat Belt", BaseFine: 1000, Description: "Driving without a seat belt"},
		{TypeName: "Using Mobile Phone", BaseFine: 1500, Description: "Using a handheld phone while driving"},
	}
	for _, t := range types {
		var cnt int64
		db.Model(&models.ViolationType{}).Where("type_name = ?", t.TypeName).Count(&cnt)
		if cnt == 0 {
			db.Create(&t)
		}
	}

	areas := []models.Area{
		{AreaName: "MG Road", City: "Bengaluru"},
		{AreaName: "Indiranagar", City: "Bengaluru"},
		{AreaName: "Koramangala", City: "Bengaluru"},
		{AreaName: "Connaught Place", City: "New Delhi"},
		{AreaName: "Bandra West", City: "Mumbai"},
		{AreaName: "T Nagar", City: "Chennai"},
	}
	for _, a := range areas {
		var cnt int64
		db.Model(&models.Area{}).Where("area_name = ? AND city = ?", a.AreaName, a.City).Count(&cnt)
		if cnt == 0 {
			db.Create(&a)
		}
	}

	var count int64
	db.Model(&models.User{}).Where("username = ?", "admin").Count(&count)
	if count == 0 {
		hash, _ := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		admin := models.User{
			Username:     "admin",
			PasswordHash: hash,
			FullName:     "System Administrator",
			Role:         models.RoleAdmin,
			Email:        "admin@example.com",
		}
		if err := db.Create(&admin).Error; err != nil {
			log.Printf("failed to seed admin user: %v", err)
		} else {
			log.Println("Seeded admin user: username=admin, password=admin123")
		}
	}
}
