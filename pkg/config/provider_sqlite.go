package config

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/chrissnell/autocal/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const configMigrationTable = "config_schema_migrations"

// Migrations returns the embedded configuration schema migrations
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationFS, "migrations", configMigrationTable)
}

// SQLiteProvider implements ConfigProvider for SQLite database configuration.
// Calibration thresholds are stored as name/value rows keyed by the static
// Key table; rows that are absent keep their defaults.
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens dbPath and brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, Migrations(), nil)
	if err := migrator.MigrateUp(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate config schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from the database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := DefaultConfig()

	calibration, err := s.GetCalibration()
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration config: %w", err)
	}
	config.Calibration = *calibration

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	return config, nil
}

// GetCalibration applies the stored threshold rows on top of the defaults
func (s *SQLiteProvider) GetCalibration() (*CalibrationData, error) {
	rows, err := s.db.Query(`SELECT name, value FROM calibration_params ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration params: %w", err)
	}
	defer rows.Close()

	calibration := DefaultCalibration()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan calibration row: %w", err)
		}

		key, ok := KeyByName(name)
		if !ok {
			return nil, &ConfigurationError{Key: name, Reason: "unknown key"}
		}
		if err := key.Set(&calibration, value); err != nil {
			return nil, err
		}
	}

	return &calibration, rows.Err()
}

// GetStorageConfig returns the history store configuration
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	var backend string
	var sqlitePath, postgresDSN sql.NullString

	err := s.db.QueryRow(`SELECT backend, sqlite_path, postgres_connection_string FROM storage_configs WHERE id = 1`).
		Scan(&backend, &sqlitePath, &postgresDSN)
	if err == sql.ErrNoRows {
		return &StorageData{Backend: StorageMemory}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query storage config: %w", err)
	}

	storage := &StorageData{Backend: backend}
	if sqlitePath.Valid {
		storage.SQLite = &SQLiteData{Path: sqlitePath.String}
	}
	if postgresDSN.Valid {
		storage.Postgres = &PostgresData{ConnectionString: postgresDSN.String}
	}
	return storage, nil
}

// GetControllers returns controller configurations from the database
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	rows, err := s.db.Query(`SELECT type, listen_addr, port, cert, key FROM controller_configs ORDER BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var controllerType string
		var listenAddr, cert, key sql.NullString
		var port sql.NullInt64

		if err := rows.Scan(&controllerType, &listenAddr, &port, &cert, &key); err != nil {
			return nil, fmt.Errorf("failed to scan controller row: %w", err)
		}

		controller := ControllerData{Type: controllerType}
		if controllerType == "rest" {
			controller.RESTServer = &RESTServerData{
				ListenAddr: listenAddr.String,
				Port:       int(port.Int64),
				Cert:       cert.String,
				Key:        key.String,
			}
		}
		controllers = append(controllers, controller)
	}

	return controllers, rows.Err()
}

// SetCalibrationValue validates and stores a single threshold
func (s *SQLiteProvider) SetCalibrationValue(key Key, value string) error {
	calibration, err := s.GetCalibration()
	if err != nil {
		return err
	}
	if err := key.Set(calibration, value); err != nil {
		return err
	}
	if err := calibration.Validate(); err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO calibration_params (name, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key.String(), key.Get(calibration))
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// SaveConfig replaces the stored configuration with config
func (s *SQLiteProvider) SaveConfig(config *ConfigData) error {
	if err := config.Calibration.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM calibration_params`,
		`DELETE FROM storage_configs`,
		`DELETE FROM controller_configs`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to clear existing config: %w", err)
		}
	}

	for _, key := range Keys() {
		if _, err := tx.Exec(`INSERT INTO calibration_params (name, value) VALUES (?, ?)`,
			key.String(), key.Get(&config.Calibration)); err != nil {
			return fmt.Errorf("failed to insert %s: %w", key, err)
		}
	}

	if err := s.insertStorageConfig(tx, &config.Storage); err != nil {
		return err
	}

	for i := range config.Controllers {
		if err := s.insertController(tx, &config.Controllers[i]); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteProvider) insertStorageConfig(tx *sql.Tx, storage *StorageData) error {
	backend := storage.Backend
	if backend == "" {
		backend = StorageMemory
	}

	var sqlitePath, postgresDSN sql.NullString
	if storage.SQLite != nil {
		sqlitePath = nullString(storage.SQLite.Path)
	}
	if storage.Postgres != nil {
		postgresDSN = nullString(storage.Postgres.ConnectionString)
	}

	_, err := tx.Exec(`INSERT INTO storage_configs (id, backend, sqlite_path, postgres_connection_string) VALUES (1, ?, ?, ?)`,
		backend, sqlitePath, postgresDSN)
	if err != nil {
		return fmt.Errorf("failed to insert storage config: %w", err)
	}
	return nil
}

func (s *SQLiteProvider) insertController(tx *sql.Tx, controller *ControllerData) error {
	var listenAddr, cert, key sql.NullString
	var port sql.NullInt64

	if controller.RESTServer != nil {
		listenAddr = nullString(controller.RESTServer.ListenAddr)
		cert = nullString(controller.RESTServer.Cert)
		key = nullString(controller.RESTServer.Key)
		port = sql.NullInt64{Int64: int64(controller.RESTServer.Port), Valid: controller.RESTServer.Port != 0}
	}

	_, err := tx.Exec(`INSERT INTO controller_configs (type, listen_addr, port, cert, key) VALUES (?, ?, ?, ?, ?)`,
		controller.Type, listenAddr, port, cert, key)
	if err != nil {
		return fmt.Errorf("failed to insert controller %s: %w", controller.Type, err)
	}
	return nil
}

// IsReadOnly returns false since SQLite supports writes
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
