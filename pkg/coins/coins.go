// Package coins holds the data-driven catalogue of supported coins. The reward math never
// looks at a symbol; it only receives the APY and minimum stake resolved here.
package coins

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

//go:embed coins.yaml
var defaultCatalogue []byte

var ErrUnknownCoin = errors.New("unknown coin")

type Coin struct {
	Symbol           string          `yaml:"symbol" json:"symbol"`
	Name             string          `yaml:"name" json:"name"`
	Apy              decimal.Decimal `yaml:"apy" json:"apy"`
	MinStake         decimal.Decimal `yaml:"min_stake" json:"minStake"`
	PriceFeedId      string          `yaml:"price_feed_id" json:"priceFeedId"`
	FallbackPriceUsd decimal.Decimal `yaml:"fallback_price_usd" json:"fallbackPriceUsd"`
	StakingEnabled   bool            `yaml:"staking_enabled" json:"stakingEnabled"`
	Description      string          `yaml:"description" json:"description"`
	DocsUrl          string          `yaml:"docs_url" json:"docsUrl"`
}

type catalogueFile struct {
	Coins []*Coin `yaml:"coins"`
}

type Catalogue struct {
	coins *orderedmap.OrderedMap[string, *Coin]
}

// LoadDefault parses the catalogue compiled into the binary.
func LoadDefault() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// Load reads the catalogue at path, or the embedded default when path is empty.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return LoadDefault()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read coins file '%s': %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalogue, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse coins catalogue: %w", err)
	}
	if len(file.Coins) == 0 {
		return nil, fmt.Errorf("coins catalogue is empty")
	}

	hundred := decimal.NewFromInt(100)
	coins := orderedmap.New[string, *Coin]()
	for i, c := range file.Coins {
		if c == nil {
			return nil, fmt.Errorf("coin %d is empty", i)
		}
		c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
		if c.Symbol == "" {
			return nil, fmt.Errorf("coin %d has no symbol", i)
		}
		if _, exists := coins.Get(c.Symbol); exists {
			return nil, fmt.Errorf("duplicate coin symbol '%s'", c.Symbol)
		}
		if c.Apy.IsNegative() || c.Apy.GreaterThan(hundred) {
			return nil, fmt.Errorf("coin '%s' apy must be between 0 and 100", c.Symbol)
		}
		if c.MinStake.IsNegative() {
			return nil, fmt.Errorf("coin '%s' min_stake must not be negative", c.Symbol)
		}
		if c.FallbackPriceUsd.IsNegative() {
			return nil, fmt.Errorf("coin '%s' fallback_price_usd must not be negative", c.Symbol)
		}
		coins.Set(c.Symbol, c)
	}
	return &Catalogue{coins: coins}, nil
}

func (c *Catalogue) Get(symbol string) (*Coin, error) {
	coin, ok := c.coins.Get(strings.ToUpper(symbol))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCoin, symbol)
	}
	return coin, nil
}

// List returns coins in catalogue file order.
func (c *Catalogue) List() []*Coin {
	out := make([]*Coin, 0, c.coins.Len())
	for pair := c.coins.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

func (c *Catalogue) StakingEnabled(symbol string) bool {
	coin, err := c.Get(symbol)
	if err != nil {
		return false
	}
	return coin.StakingEnabled
}
