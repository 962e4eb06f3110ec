package database

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", withPragmas(dataSourceName))
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func withPragmas(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// MigrateUsers creates the credential store used by the login service.
func MigrateUsers(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE COLLATE NOCASE,
		password_hash TEXT NOT NULL,
		email TEXT UNIQUE COLLATE NOCASE,
		first_name TEXT,
		last_name TEXT,
		phone TEXT,
		address TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}

// MigrateLegacyUsers creates the table of the legacy users service.
func MigrateLegacyUsers(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS legacy_users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}

// MigrateCatalog creates the products and sales tables.
func MigrateCatalog(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		price TEXT NOT NULL, -- decimal(10,2) kept as text to avoid float rounding
		quantity INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		sale_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		total TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_sale_date ON sales(sale_date);
	`
	_, err := db.Exec(sqlStmt)
	return err
}

// MigrateBilling creates the invoices table.
func MigrateBilling(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invoice_number TEXT NOT NULL UNIQUE,
		issued_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		-- Store structured fields as JSON text
		customer_json TEXT NOT NULL,
		items_json TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		taxes TEXT NOT NULL,
		total TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pendiente',
		payment_method TEXT
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
