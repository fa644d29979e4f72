package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	DataPath        string
	DBPath          string
	LogDir          string
	ListenAddr      string
	Workers         int
	StoreTimeout    time.Duration
	DefaultTimezone string
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Try to load from the executable's directory (highest priority for deployed services)
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Fallback to current working directory (useful for development/go run)
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	// 3. Resolve Data Paths
	dataPath := os.Getenv("STOREWATCH_DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	dbPath := getEnv("STOREWATCH_DB_PATH", filepath.Join(dataPath, "db"))
	logDir := filepath.Join(dataPath, "logs")

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		log.Warn().Err(err).Str("path", dbPath).Msg("Failed to create database directory")
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Warn().Err(err).Str("path", logDir).Msg("Failed to create log directory")
	}

	timeoutSecs := getEnvInt("STOREWATCH_STORE_TIMEOUT_SECONDS", 30)

	cfg := &AppConfig{
		DataPath:        dataPath,
		DBPath:          dbPath,
		LogDir:          logDir,
		ListenAddr:      getEnv("STOREWATCH_LISTEN_ADDR", ":8080"),
		Workers:         getEnvInt("STOREWATCH_WORKERS", runtime.NumCPU()),
		StoreTimeout:    time.Duration(timeoutSecs) * time.Second,
		DefaultTimezone: getEnv("STOREWATCH_DEFAULT_TIMEZONE", "America/Chicago"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return fallback
}
