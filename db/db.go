package db

import (
	"fmt"
	"log"
	"os"

	"supplyhub/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}

	if err := Migrate(DB); err != nil {
		log.Fatal("Failed to migrate models: ", err)
	}
	log.Println("Database connected")
	return DB
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Supply{}, &models.EquipmentInstance{},
		&models.SupplyRequest{}, &models.BatchGroup{},
		&models.BorrowedItem{},
		&models.StockMovement{}, &models.ScanLog{},
	); err != nil {
		return err
	}

	// 0 <= reserved <= quantity, enforced by the schema too
	if err := db.Exec(fmt.Sprintf(`
	  ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s_reserved_within_stock;
	`, models.SupplyTable, models.SupplyTable)).Error; err != nil {
		return err
	}
	if err := db.Exec(fmt.Sprintf(`
	  ALTER TABLE %s ADD CONSTRAINT %s_reserved_within_stock
	  CHECK (reserved_quantity >= 0 AND reserved_quantity <= quantity);
	`, models.SupplyTable, models.SupplyTable)).Error; err != nil {
		return err
	}

	// 同一 instance 最多一条未归还记录
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_open_per_instance
	  ON %s (instance_id)
	  WHERE returned_at IS NULL;
	`, models.BorrowedItemTable, models.BorrowedItemTable)).Error; err != nil {
		return err
	}

	// overdue scan: open items per borrower by due date
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_borrower_due
	  ON %s (borrower_id, due_at)
	  WHERE returned_at IS NULL;
	`, models.BorrowedItemTable, models.BorrowedItemTable)).Error; err != nil {
		return err
	}

	// batch completion check: open items per group
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_open_group
	  ON %s (batch_group_id)
	  WHERE returned_at IS NULL;
	`, models.BorrowedItemTable, models.BorrowedItemTable)).Error; err != nil {
		return err
	}

	return nil
}
