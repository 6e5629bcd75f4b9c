package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stakewell/stakedash/internal/config"
)

func GetConfig() *config.Config {
	return config.NewDefaultConfig()
}

// GetDbConfigFromEnv reads the postgres connection used by integration tests.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	port, err := strconv.Atoi(os.Getenv("STAKEDASH_DATABASE_PORT"))
	if err != nil || port == 0 {
		port = 5432
	}
	host := os.Getenv("STAKEDASH_DATABASE_HOST")
	if host == "" {
		host = "localhost"
	}
	return &config.DatabaseConfig{
		Driver:   config.DatabaseDriver_Postgres,
		Host:     host,
		Port:     port,
		User:     os.Getenv("STAKEDASH_DATABASE_USER"),
		Password: os.Getenv("STAKEDASH_DATABASE_PASSWORD"),
		SSLMode:  "disable",
	}
}

// PostgresAvailable gates tests that need a real server.
func PostgresAvailable() bool {
	return os.Getenv("STAKEDASH_TEST_POSTGRES") == "true"
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}
