// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the cache database (always absolute)
	Port       int
	LogLevel   string
	DevMode    bool
	BackendURL string // Remote execution service; empty selects the local simulator
	Seed       int64  // Seed for the local simulator and iteration schedules; 0 = time-based

	Search SearchConfig
	Cache  CacheConfig
	Backup BackupConfig
}

// SearchConfig holds the search controller defaults served over the API.
type SearchConfig struct {
	ShotsPerRound      int
	EscalationCeiling  int
	MaxRounds          int
	MaxPatternVertices int
	Concurrency        int
}

// CacheConfig holds oracle-circuit cache settings.
type CacheConfig struct {
	Enabled      bool
	MaxAgeHours  int // Entries unused for longer are pruned by the janitor
	PruneEnabled bool
}

// BackupConfig holds object-storage backup settings. The backup job is
// disabled unless a bucket is configured.
type BackupConfig struct {
	Enabled         bool
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("SUBISOM_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:    absDataDir,
		Port:       getEnvAsInt("SUBISOM_PORT", 8020),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		DevMode:    getEnvAsBool("DEV_MODE", false),
		BackendURL: getEnv("SUBISOM_BACKEND_URL", ""),
		Seed:       int64(getEnvAsInt("SUBISOM_SEED", 0)),
		Search: SearchConfig{
			ShotsPerRound:      getEnvAsInt("SUBISOM_SHOTS_PER_ROUND", 64),
			EscalationCeiling:  getEnvAsInt("SUBISOM_ESCALATION_CEILING", 64),
			MaxRounds:          getEnvAsInt("SUBISOM_MAX_ROUNDS", 24),
			MaxPatternVertices: getEnvAsInt("SUBISOM_MAX_PATTERN_VERTICES", 8),
			Concurrency:        getEnvAsInt("SUBISOM_CONCURRENCY", 2),
		},
		Cache: CacheConfig{
			Enabled:      getEnvAsBool("SUBISOM_CACHE_ENABLED", true),
			MaxAgeHours:  getEnvAsInt("SUBISOM_CACHE_MAX_AGE_HOURS", 24*14),
			PruneEnabled: getEnvAsBool("SUBISOM_CACHE_PRUNE_ENABLED", true),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("SUBISOM_BACKUP_ENABLED", false),
			Endpoint:        getEnv("SUBISOM_BACKUP_ENDPOINT", ""),
			Region:          getEnv("SUBISOM_BACKUP_REGION", "auto"),
			Bucket:          getEnv("SUBISOM_BACKUP_BUCKET", ""),
			AccessKeyID:     getEnv("SUBISOM_BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("SUBISOM_BACKUP_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("SUBISOM_BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("backup enabled but SUBISOM_BACKUP_BUCKET is empty")
	}
	return nil
}

// CacheDBPath returns the oracle-circuit cache database location.
func (c *Config) CacheDBPath() string {
	return filepath.Join(c.DataDir, "oracle-cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
