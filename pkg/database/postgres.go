package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-engine/pkg/config"
)

// Pool defaults sized for this service: a handful of generation workers
// persisting in short transactional bursts plus the read-side API.
const (
	defaultMaxOpenConns = 10
	defaultMaxIdleConns = 5
)

// NewPostgres returns a verified PostgreSQL connection pool.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	open, idle := defaultMaxOpenConns, defaultMaxIdleConns
	if cfg.MaxOpenConns > 0 {
		open = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		idle = cfg.MaxIdleConns
	}
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
