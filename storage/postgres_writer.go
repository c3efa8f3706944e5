package storage

import (
	"fmt"
	"time"

	"hicv-scanner/models"
	"hicv-scanner/utils"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const createTable = `
	CREATE TABLE IF NOT EXISTS availability (
		id          SERIAL PRIMARY KEY,
		date_range  TEXT    NOT NULL,
		resort      TEXT    NOT NULL,
		room        TEXT    NOT NULL,
		points      INTEGER NOT NULL DEFAULT 0,
		scraped_at  TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE (date_range, resort, room, points)
	);

	CREATE INDEX IF NOT EXISTS idx_availability_resort ON availability (resort);
	CREATE INDEX IF NOT EXISTS idx_availability_points ON availability (points);
	`

const insertRecord = `
	INSERT INTO availability (date_range, resort, room, points)
	VALUES (:date_range, :resort, :room, :points)
	ON CONFLICT (date_range, resort, room, points) DO NOTHING
	`

// PostgresWriter stores records in the availability table, skipping rows
// already stored by earlier runs.
type PostgresWriter struct {
	db     *sqlx.DB
	logger *utils.Logger
}

// NewPostgresWriter connects, pings and ensures the schema.
func NewPostgresWriter(dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	logger.Info("Connected to PostgreSQL, table 'availability' is ready")
	return &PostgresWriter{db: db, logger: logger}, nil
}

// Save inserts records in a single transaction.
func (w *PostgresWriter) Save(records []models.AvailabilityRecord) (err error) {
	if len(records) == 0 {
		return nil
	}

	tx, err := w.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareNamed(insertRecord)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, r := range records {
		res, execErr := stmt.Exec(r)
		if execErr != nil {
			return fmt.Errorf("failed to insert %q: %w", r.Resort, execErr)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted += n
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	w.logger.Info("Inserted %d/%d records into PostgreSQL", inserted, len(records))
	return nil
}

// Close closes the database connection
func (w *PostgresWriter) Close() error {
	if w.db == nil {
		return nil
	}
	return w.db.Close()
}
