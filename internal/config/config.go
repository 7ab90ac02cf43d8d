package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds the application configuration
type Config struct {
	DatabaseDriver string `json:"database_driver"` // sqlite or postgres
	DatabasePath   string `json:"database_path"`   // sqlite file path
	DatabaseDSN    string `json:"database_dsn"`    // postgres DSN, used when driver is postgres
	APIPort        string `json:"api_port"`
	LogLevel       string `json:"log_level"`
	DataDir        string `json:"data_dir"`
	JWTSecret      string `json:"jwt_secret"`
	EncryptionKey  string `json:"encryption_key"` // key for mailbox credential encryption
	CORSOrigins    string `json:"cors_origins"`
}

// Default configuration values
const (
	DefaultDatabaseDriver = "sqlite"
	DefaultDatabasePath   = "data/kritiqo.db"
	DefaultAPIPort        = "8080"
	DefaultLogLevel       = "INFO"
	DefaultDataDir        = "data"
	DefaultJWTSecret      = "kritiqo-default-secret-change-in-production"
	DefaultEncryptionKey  = "" // empty derives from JWTSecret
	DefaultCORSOrigins    = "*"
)

// Load loads configuration from environment variables and config file.
// Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseDriver: DefaultDatabaseDriver,
		DatabasePath:   DefaultDatabasePath,
		APIPort:        DefaultAPIPort,
		LogLevel:       DefaultLogLevel,
		DataDir:        DefaultDataDir,
		JWTSecret:      DefaultJWTSecret,
		EncryptionKey:  DefaultEncryptionKey,
		CORSOrigins:    DefaultCORSOrigins,
	}

	// Config file is optional
	_ = cfg.loadFromFile()

	cfg.loadFromEnv()

	return cfg, nil
}

// loadFromFile loads configuration from config.json
func (c *Config) loadFromFile() error {
	configPaths := []string{
		"config.json",
		filepath.Join(c.DataDir, "config.json"),
	}

	for _, path := range configPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return json.Unmarshal(data, c)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if val := os.Getenv("KRITIQO_DATABASE_DRIVER"); val != "" {
		c.DatabaseDriver = val
	}
	if val := os.Getenv("KRITIQO_DATABASE_PATH"); val != "" {
		c.DatabasePath = val
	}
	if val := os.Getenv("KRITIQO_DATABASE_DSN"); val != "" {
		c.DatabaseDSN = val
	}
	if val := os.Getenv("KRITIQO_API_PORT"); val != "" {
		c.APIPort = val
	}
	if val := os.Getenv("KRITIQO_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("KRITIQO_DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("KRITIQO_JWT_SECRET"); val != "" {
		c.JWTSecret = val
	}
	if val := os.Getenv("KRITIQO_ENCRYPTION_KEY"); val != "" {
		c.EncryptionKey = val
	}
	if val := os.Getenv("KRITIQO_CORS_ORIGINS"); val != "" {
		c.CORSOrigins = val
	}
}

// GetEncryptionKey returns the 32-byte key used to encrypt mailbox credentials.
// If EncryptionKey is unset the key is derived from JWTSecret.
func (c *Config) GetEncryptionKey() []byte {
	if c.EncryptionKey != "" {
		hash := sha256.Sum256([]byte(c.EncryptionKey))
		return hash[:]
	}
	hash := sha256.Sum256([]byte(c.JWTSecret + "-encryption"))
	return hash[:]
}

// Save saves the current configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
