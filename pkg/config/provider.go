package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, defaults filled in for anything unset
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetCalibration() (*CalibrationData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Calibration CalibrationData  `json:"calibration" yaml:"calibration"`
	Storage     StorageData      `json:"storage,omitempty" yaml:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty" yaml:"controllers,omitempty"`
}

// Storage backends
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// StorageData selects and configures the history store
type StorageData struct {
	Backend  string        `json:"backend,omitempty" yaml:"backend,omitempty"`
	SQLite   *SQLiteData   `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty" yaml:"postgres,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// ControllerData holds the configuration for a front-end controller
type ControllerData struct {
	Type       string          `json:"type,omitempty" yaml:"type,omitempty"`
	RESTServer *RESTServerData `json:"rest,omitempty" yaml:"rest,omitempty"`
}

type RESTServerData struct {
	Cert       string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key        string `json:"key,omitempty" yaml:"key,omitempty"`
	Port       int    `json:"port,omitempty" yaml:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
}

// DefaultConfig returns a configuration that runs the engine against an
// in-memory store with no controllers
func DefaultConfig() *ConfigData {
	return &ConfigData{
		Calibration: DefaultCalibration(),
		Storage:     StorageData{Backend: StorageMemory},
	}
}
