package database

import (
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/student-portal-api/pkg/config"
)

// Open connects to the configured SQL backend.
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	switch cfg.Driver {
	case config.DriverMySQL:
		return NewMySQL(cfg)
	default:
		return NewPostgres(cfg)
	}
}

// NewPostgres returns a configured PostgreSQL client.
func NewPostgres(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
	return connect("postgres", dsn, cfg)
}

// NewMySQL returns a configured MySQL client. Rows affected counts matched rows so an
// update that rewrites identical values still reports the row as present.
func NewMySQL(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	return connect("mysql", MySQLDSN(cfg), cfg)
}

// MySQLDSN renders the driver DSN for the given settings.
func MySQLDSN(cfg config.DatabaseConfig) string {
	myCfg := mysql.NewConfig()
	myCfg.User = cfg.User
	myCfg.Passwd = cfg.Password
	myCfg.Net = "tcp"
	myCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	myCfg.DBName = cfg.Name
	myCfg.ParseTime = true
	myCfg.Loc = time.UTC
	myCfg.ClientFoundRows = true
	return myCfg.FormatDSN()
}

func connect(driver, dsn string, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
