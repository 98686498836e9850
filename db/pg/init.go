package pg

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"travelbook/config"
)

const defaultDSN = "host=localhost user=postgres dbname=postgres port=5432 sslmode=disable TimeZone=Asia/Shanghai"

// CreateDSN returns databaseURL, or a local default, pointed at the app schema.
// Both URL and keyword/value forms are accepted.
func CreateDSN(databaseURL string) string {
	connStr := databaseURL
	if connStr == "" {
		connStr = defaultDSN
		log.Printf("Using default connection string: %s", connStr)
	} else {
		log.Printf("Using DATABASE_URL: *")
	}

	// dsn should point to target schema for the app
	appSchema := config.AppName
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err == nil {
			q := u.Query()
			q.Set("search_path", appSchema)
			u.RawQuery = q.Encode()
			return u.String()
		}
	}
	return connStr + fmt.Sprintf(" search_path=%s", appSchema)
}

func CloseGORM(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB from GORM: %v", err)
		return
	}
	sqlDB.Close()
}

// InitPostgresGORM initializes a new GORM DB connection to PostgreSQL.
func InitPostgresGORM(dsn string) (*gorm.DB, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Ping the database to ensure connection is alive
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
