// Package database opens the GORM connection used by the PostgreSQL history
// store and defines its table model.
package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CreateConnection opens a PostgreSQL connection with the standard GORM
// configuration. GORM's own log lines go through zap.
func CreateConnection(connectionString string, zl *zap.Logger) (*gorm.DB, error) {
	return Open(postgres.Open(connectionString), zl)
}

// Open creates a GORM handle for any dialector
func Open(dialector gorm.Dialector, zl *zap.Logger) (*gorm.DB, error) {
	if zl == nil {
		zl = zap.NewNop()
	}

	dbLogger := logger.New(
		zap.NewStdLog(zl),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to open database connection: %w", err)
	}
	return db, nil
}
