package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"presale/config"
	"presale/models"
)

// DbInstance struct holds the database connection instance
type DbInstance struct {
	Db *gorm.DB
}

// Database is the global database instance
var Database DbInstance

// ConnectDb opens the configured store, migrates it and saves it globally.
func ConnectDb(cfg *config.Config) *gorm.DB {
	var dsn string
	switch cfg.DBDriver {
	case "sqlite":
		dsn = cfg.SQLitePath
	default:
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort,
		)
	}

	db, err := Open(cfg.DBDriver, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if cfg.DBDriver != "sqlite" {
		// Set up connection pooling
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Failed to get database instance: %v", err)
		}
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
	}

	Database = DbInstance{Db: db}
	return db
}

// Open connects to postgres or sqlite and runs migrations.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := runMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// runMigrations performs database migrations
func runMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.ProposalRecord{},
		&models.IssuedPolicyRecord{},
		&models.VerificationCode{},
		&models.PaymentAttempt{},
		&models.Agent{},
		&models.LoginTracking{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
