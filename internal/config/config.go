package config

import "os"

// Config carries the process-level settings. Everything has a workable
// default so the binary runs with no environment at all.
type Config struct {
	// DataDir is where the file backend keeps its JSON collections.
	DataDir string
	// DBPath, when set, switches persistence to the embedded SQLite
	// database at that path.
	DBPath string
	// Language and Currency seed the business settings on first run.
	Language string
	Currency string
	LogLevel string
}

func Load() Config {
	return Config{
		DataDir:  getEnv("POS_DATA_DIR", "./data"),
		DBPath:   getEnv("POS_DB_PATH", ""),
		Language: getEnv("POS_LANG", "en"),
		Currency: getEnv("POS_CURRENCY", "UGX"),
		LogLevel: getEnv("POS_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
