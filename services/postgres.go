package services

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/lingokeep/progress_api/model"
	"github.com/lingokeep/progress_api/seed/seeders"
	"github.com/lingokeep/progress_api/shared"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresService struct {
	context.DefaultService
	db *gorm.DB

	database string
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) Configure(ctx *context.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "progress_api"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			host, user, password, dbname, port, sslmode)
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	// Retry connection with exponential backoff
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})

		if err == nil {
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				if pingErr := sqlDB.Ping(); pingErr == nil {
					log.Println("Successfully connected to database")
					break
				} else {
					err = pingErr
				}
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	if err = ds.db.AutoMigrate(EngineModels()...); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	if os.Getenv("SEED_CATALOGS") != "false" {
		if err = seeders.NewMainSeeder(ds.db).SeedAll(); err != nil {
			log.Printf("Failed to seed catalogs: %v", err)
			return err
		}
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
	if ds.db == nil {
		return
	}
	if sqlDB, err := ds.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// EngineModels lists every entity the engine persists, in migration order.
func EngineModels() []interface{} {
	return []interface{}{
		&model.DailyStat{},
		&model.UserProgress{},
		&model.Challenge{},
		&model.UserChallengeProgress{},
		&model.Achievement{},
		&model.UserAchievement{},
		&model.VocabularyCard{},
		&model.RewardLedger{},
		&model.StarTransaction{},
	}
}

// HandleError maps persistence failures onto the engine error taxonomy.
func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var mapped error
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		mapped = shared.ErrNotFound
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		mapped = shared.ErrConcurrencyConflict
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		mapped = shared.ErrConcurrencyConflict
		errorType = "TRANSACTION_ERROR"
	default:
		if strings.Contains(err.Error(), "duplicate key") ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") {
			mapped = shared.ErrConcurrencyConflict
			errorType = "UNIQUE_CONSTRAINT"
		} else {
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	})

	if mapped == nil {
		logEntry.Error("Database error occurred")
		return fmt.Errorf("%s: %w", errorType, err)
	}

	logEntry.Warn("Database operation failed")
	return fmt.Errorf("%w: %v", mapped, err)
}
