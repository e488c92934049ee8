package config

import (
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DatabasePath  string `json:"database_path"`
	APIPort       string `json:"api_port"`
	LogLevel      string `json:"log_level"`
	DataDir       string `json:"data_dir"`
	JWTSecret     string `json:"jwt_secret"`
	EncryptionKey string `json:"encryption_key"` // encrypts stored credential passwords
	CORSOrigins   string `json:"cors_origins"`

	// Classifier service settings
	ClassifierProvider string `json:"classifier_provider"`
	ClassifierAPIKey   string `json:"classifier_api_key"`
	ClassifierModel    string `json:"classifier_model"`
	ClassifierBaseURL  string `json:"classifier_base_url"`

	// Slack notification settings
	SlackClientID     string `json:"slack_client_id"`
	SlackClientSecret string `json:"slack_client_secret"`
	SlackRedirectURL  string `json:"slack_redirect_url"`
}

// Default configuration values
const (
	DefaultDatabasePath = "data/mailhaven.db"
	DefaultAPIPort      = "8080"
	DefaultLogLevel     = "INFO"
	DefaultDataDir      = "data"
	DefaultJWTSecret    = "mailhaven-default-secret-change-in-production"
	DefaultCORSOrigins  = "*"
)

// Load loads configuration from a .env file, environment variables and the
// optional config.json file. Priority: environment > config file > defaults.
func Load() (*Config, error) {
	// .env is optional; ignore a missing file
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: DefaultDatabasePath,
		APIPort:      DefaultAPIPort,
		LogLevel:     DefaultLogLevel,
		DataDir:      DefaultDataDir,
		JWTSecret:    DefaultJWTSecret,
		CORSOrigins:  DefaultCORSOrigins,
	}

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
	}

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
	set := func(dst *string, key string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}

	set(&c.DatabasePath, "MAILHAVEN_DATABASE_PATH")
	set(&c.APIPort, "MAILHAVEN_API_PORT")
	set(&c.LogLevel, "MAILHAVEN_LOG_LEVEL")
	set(&c.DataDir, "MAILHAVEN_DATA_DIR")
	set(&c.JWTSecret, "MAILHAVEN_JWT_SECRET")
	set(&c.EncryptionKey, "MAILHAVEN_ENCRYPTION_KEY")
	set(&c.CORSOrigins, "MAILHAVEN_CORS_ORIGINS")
	set(&c.ClassifierProvider, "MAILHAVEN_CLASSIFIER_PROVIDER")
	set(&c.ClassifierAPIKey, "MAILHAVEN_CLASSIFIER_API_KEY")
	set(&c.ClassifierModel, "MAILHAVEN_CLASSIFIER_MODEL")
	set(&c.ClassifierBaseURL, "MAILHAVEN_CLASSIFIER_BASE_URL")
	set(&c.SlackClientID, "SLACK_CLIENT_ID")
	set(&c.SlackClientSecret, "SLACK_CLIENT_SECRET")
	set(&c.SlackRedirectURL, "SLACK_REDIRECT_URI")
}

// GetEncryptionKey returns the 32-byte key used to encrypt credential
// passwords. If no dedicated key is configured it is derived from JWTSecret.
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
