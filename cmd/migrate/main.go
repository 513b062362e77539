package main

import (
	"log"

	"narrative-engine-be/internal/config"
	"narrative-engine-be/internal/model"
	"narrative-engine-be/pkg/database"
)

func main() {
	cfg := config.Load()

	db, err := database.NewGormDB(database.GormConfig{
		Driver:     cfg.Database.Driver,
		DSN:        cfg.Database.Connection,
		SQLitePath: cfg.Database.SQLitePath,
		LogSQL:     cfg.Database.LogSQL,
	})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Printf("Migrating %s schema...", cfg.Database.Driver)
	if err := model.AutoMigrate(db); err != nil {
		log.Fatal("Error: Migration failed:", err)
	}
	log.Println("Migration complete")
}
