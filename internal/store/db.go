package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the sqlite database and exposes both the listing merge and
// the import progress operations.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS listing_companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone_number TEXT,
			address TEXT,
			avg_rating REAL,
			total_reviews INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS properties (
			id TEXT PRIMARY KEY,
			property_type TEXT NOT NULL,
			property_link TEXT,
			description TEXT,
			scraped_at TEXT,
			listing_company_id TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (listing_company_id) REFERENCES listing_companies(id)
		)`,
		`CREATE TABLE IF NOT EXISTS addresses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL UNIQUE,
			short_address TEXT,
			full_address TEXT,
			suburb TEXT,
			state TEXT,
			postcode TEXT,
			FOREIGN KEY (property_id) REFERENCES properties(id)
		)`,
		`CREATE TABLE IF NOT EXISTS property_features (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL UNIQUE,
			bedrooms INTEGER,
			bathrooms INTEGER,
			parking_spaces INTEGER,
			land_size REAL,
			land_unit TEXT,
			building_size REAL,
			building_unit TEXT,
			FOREIGN KEY (property_id) REFERENCES properties(id)
		)`,
		`CREATE TABLE IF NOT EXISTS property_images (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL,
			url TEXT NOT NULL,
			position INTEGER NOT NULL,
			FOREIGN KEY (property_id) REFERENCES properties(id)
		)`,
		`CREATE TABLE IF NOT EXISTS property_prices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL UNIQUE,
			display_price TEXT,
			price_range TEXT,
			price_information TEXT,
			price_from TEXT,
			price_to TEXT,
			FOREIGN KEY (property_id) REFERENCES properties(id)
		)`,
		`CREATE TABLE IF NOT EXISTS property_valuations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			property_id TEXT NOT NULL UNIQUE,
			source TEXT,
			status TEXT,
			confidence TEXT,
			estimated_value TEXT,
			price_per_meter TEXT,
			price_range TEXT,
			last_updated TEXT,
			rental_confidence TEXT,
			rental_value TEXT,
			rental_period TEXT,
			rental_message TEXT,
			FOREIGN KEY (property_id) REFERENCES properties(id)
		)`,
		`CREATE TABLE IF NOT EXISTS import_progress (
			id TEXT PRIMARY KEY,
			batch_size INTEGER NOT NULL,
			current_offset INTEGER NOT NULL DEFAULT 0,
			total_items INTEGER NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}
