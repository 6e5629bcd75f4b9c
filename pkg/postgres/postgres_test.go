package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/internal/tests"
	"github.com/stakewell/stakedash/pkg/postgres/migrations"
	"github.com/stretchr/testify/assert"
)

func Test_Postgres(t *testing.T) {
	t.Run("Connection string", func(t *testing.T) {
		s, err := getPostgresConnectionString(&PostgresConfig{
			Host:       "localhost",
			Port:       5432,
			Username:   "stakedash",
			DbName:     "stakedash",
			SchemaName: "public",
		})
		assert.Nil(t, err)
		assert.Contains(t, s, "host=localhost")
		assert.Contains(t, s, "user=stakedash")
		assert.Contains(t, s, "sslmode=disable")
		assert.Contains(t, s, "search_path=public")

		_, err = getPostgresConnectionString(&PostgresConfig{SSLMode: "sometimes"})
		assert.NotNil(t, err)
	})

	t.Run("Duplicate key errors", func(t *testing.T) {
		assert.True(t, IsDuplicateKeyError(errors.New(`ERROR: duplicate key value violates unique constraint "uniq_transactions_posting_bucket" (SQLSTATE 23505)`)))
		assert.True(t, IsDuplicateKeyError(errors.New(`constraint failed: UNIQUE constraint failed: transactions.user_id, transactions.type, transactions.posting_bucket (2067)`)))
		assert.False(t, IsDuplicateKeyError(errors.New("connection refused")))
		assert.False(t, IsDuplicateKeyError(nil))

		assert.True(t, IsDuplicateKeyError(fmt.Errorf("insert reward: %w", &pq.Error{Code: "23505"})))
		assert.False(t, IsDuplicateKeyError(fmt.Errorf("insert reward: %w", &pq.Error{Code: "23503"})))
	})

	t.Run("Test Migration Up", func(t *testing.T) {
		if !tests.PostgresAvailable() {
			t.Skip("postgres not available")
		}
		cfg := tests.GetConfig()
		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

		dbName, db, grm, err := GetTestPostgresDatabase(*tests.GetDbConfigFromEnv(), cfg, l)
		if err != nil {
			t.Fatalf("Failed to setup postgres: %v", err)
		}
		cfg.DatabaseConfig = *tests.GetDbConfigFromEnv()
		defer TeardownTestDatabase(dbName, cfg, grm, l)

		migrator := migrations.NewMigrator(db, grm, l, cfg)
		assert.Nil(t, migrator.MigrateAll())
	})
}
