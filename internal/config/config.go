package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration.
type Config struct {
	// Cache settings
	CachePath string
	LogLevel  string

	// Credential store settings
	KeyringService string
	KeyringFileDir string

	// Sync settings
	SyncInterval time.Duration

	// Accounts
	Accounts []AccountConfig
}

// AccountConfig holds configuration for a single mail account.
type AccountConfig struct {
	ID       string
	Name     string
	Email    string
	Provider string
	Color    string

	IMAPHost string
	IMAPPort int
	Username string
	Password string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		CachePath:      getEnv("CACHE_PATH", "/data/mailcache.db"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		KeyringService: getEnv("KEYRING_SERVICE", "mailcache"),
		KeyringFileDir: getEnv("KEYRING_FILE_DIR", "~/.config/mailcache/credentials"),
		SyncInterval:   getEnvDuration("SYNC_INTERVAL", 5*time.Minute),
	}

	accounts, err := loadAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	cfg.Accounts = accounts

	return cfg, nil
}

// loadAccounts loads account configurations from environment variables
// (ACCOUNT_1_*, ACCOUNT_2_*, etc.).
func loadAccounts() ([]AccountConfig, error) {
	var accounts []AccountConfig

	accountNum := 1
	for {
		account, err := loadAccountByNumber(accountNum)
		if err != nil {
			break // No more accounts
		}
		accounts = append(accounts, *account)
		accountNum++
	}

	return accounts, nil
}

// loadAccountByNumber loads an account by number.
func loadAccountByNumber(num int) (*AccountConfig, error) {
	prefix := fmt.Sprintf("ACCOUNT_%d_", num)

	id := getEnv(prefix+"ID", "")
	if id == "" {
		return nil, fmt.Errorf("account %d: ID is required", num)
	}

	host := getEnv(prefix+"IMAP_HOST", "")
	if host == "" {
		return nil, fmt.Errorf("account %d: IMAP_HOST is required", num)
	}

	username := getEnv(prefix+"USERNAME", "")
	if username == "" {
		return nil, fmt.Errorf("account %d: USERNAME is required", num)
	}

	return &AccountConfig{
		ID:       id,
		Name:     getEnv(prefix+"NAME", id),
		Email:    getEnv(prefix+"EMAIL", username),
		Provider: getEnv(prefix+"PROVIDER", ""),
		Color:    getEnv(prefix+"COLOR", ""),
		IMAPHost: host,
		IMAPPort: getEnvInt(prefix+"IMAP_PORT", 993),
		Username: username,
		Password: getEnv(prefix+"PASSWORD", ""),
	}, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.CachePath == "" {
		return fmt.Errorf("CACHE_PATH is required")
	}
	if c.SyncInterval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least one minute")
	}

	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.IMAPPort < 1 || acc.IMAPPort > 65535 {
			return fmt.Errorf("account %s: invalid IMAP_PORT", acc.ID)
		}
	}

	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a
// default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable as a duration or returns
// a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
