package coins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Coins(t *testing.T) {
	t.Run("Default catalogue", func(t *testing.T) {
		cat, err := LoadDefault()
		require.Nil(t, err)

		list := cat.List()
		require.Equal(t, 4, len(list))
		assert.Equal(t, "ETH", list[0].Symbol)
		assert.Equal(t, "DOT", list[3].Symbol)

		eth, err := cat.Get("eth")
		require.Nil(t, err)
		assert.True(t, decimal.RequireFromString("3").Equal(eth.Apy))
		assert.True(t, decimal.RequireFromString("0.01").Equal(eth.MinStake))
		assert.Equal(t, "ethereum", eth.PriceFeedId)

		assert.True(t, cat.StakingEnabled("ETH"))
		assert.False(t, cat.StakingEnabled("SOL"))
		assert.False(t, cat.StakingEnabled("DOGE"))
	})

	t.Run("Unknown coin", func(t *testing.T) {
		cat, err := LoadDefault()
		require.Nil(t, err)
		_, err = cat.Get("DOGE")
		assert.ErrorIs(t, err, ErrUnknownCoin)
	})

	t.Run("Load from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "coins.yaml")
		data := []byte("coins:\n  - symbol: atom\n    apy: \"15\"\n    min_stake: \"1\"\n    staking_enabled: true\n")
		require.Nil(t, os.WriteFile(path, data, 0o600))

		cat, err := Load(path)
		require.Nil(t, err)
		assert.True(t, cat.StakingEnabled("ATOM"))
	})

	t.Run("Validation", func(t *testing.T) {
		cases := map[string]string{
			"empty":        "coins: []\n",
			"no symbol":    "coins:\n  - name: x\n",
			"duplicate":    "coins:\n  - symbol: ETH\n  - symbol: eth\n",
			"apy too high": "coins:\n  - symbol: ETH\n    apy: \"101\"\n",
			"negative min": "coins:\n  - symbol: ETH\n    min_stake: \"-1\"\n",
			"not yaml":     "coins: [",
		}
		for name, data := range cases {
			_, err := Parse([]byte(data))
			assert.NotNil(t, err, name)
		}
	})
}
