package cmd

import (
	"os"
	"testing"

	"github.com/stakewell/stakedash/internal/config"
	"github.com/stakewell/stakedash/internal/logger"
	"github.com/stakewell/stakedash/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sqliteConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.DatabaseConfig.Driver = config.DatabaseDriver_Sqlite
	cfg.DatabaseConfig.SqlitePath = ""
	return cfg
}

func Test_Stack(t *testing.T) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.Nil(t, err)

	t.Run("Close releases the database", func(t *testing.T) {
		s, err := newStack(sqliteConfig(), l)
		require.Nil(t, err)
		require.Nil(t, s.db.Db.Ping())

		s.Close()
		assert.Error(t, s.db.Db.Ping())
	})

	t.Run("A failed startup still closes the stack", func(t *testing.T) {
		var opened *stack
		openStack = func(cfg *config.Config, l *zap.Logger) (*stack, error) {
			s, err := newStack(cfg, l)
			opened = s
			return s, err
		}
		defer func() { openStack = newStack }()

		cfg := sqliteConfig()
		cfg.AuthConfig.JwtSecret = ""

		err := runServer(cfg, l, make(chan os.Signal, 1))
		assert.ErrorIs(t, err, auth.ErrMissingSecret)

		require.NotNil(t, opened)
		assert.Error(t, opened.db.Db.Ping())
	})
}
