package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "STAKEDASH"

type DatabaseDriver string

const (
	DatabaseDriver_Postgres DatabaseDriver = "postgres"
	DatabaseDriver_Sqlite   DatabaseDriver = "sqlite"
)

type DatabaseConfig struct {
	Driver      DatabaseDriver
	Host        string
	Port        int
	User        string
	Password    string
	DbName      string
	SchemaName  string
	SSLMode     string
	SSLCert     string
	SSLKey      string
	SSLRootCert string
	SqlitePath  string
}

type StakingConfig struct {
	DisplayedApy    decimal.Decimal
	ActualApy       decimal.Decimal
	AccrualInterval int
	MinStake        decimal.Decimal
	MinPostable     decimal.Decimal
	ReferralRate    decimal.Decimal
	CoinsFile       string
	DefaultCoin     string
}

type RpcConfig struct {
	HttpPort           int
	CorsAllowedOrigins []string
}

type AuthConfig struct {
	JwtSecret       string
	TokenTtlMinutes int
	BcryptCost      int
	AdminEmails     []string
}

type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute float64
	Burst             int
}

type PriceFeedConfig struct {
	BaseUrl         string
	ApiKey          string
	CacheTtlSeconds int
	TimeoutSeconds  int
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	Db       int
}

type RabbitMqConfig struct {
	Enabled  bool
	Url      string
	Username string
	Password string
	Secure   bool
	Exchange string
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type StatsdConfig struct {
	Enabled    bool
	Url        string
	SampleRate float64
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type SnapshotConfig struct {
	OutputFile string
	InputFile  string
}

type ExportConfig struct {
	OutputFile string
}

type LogConfig struct {
	File string
}

type Config struct {
	Debug            bool
	DatabaseConfig   DatabaseConfig
	StakingConfig    StakingConfig
	RpcConfig        RpcConfig
	AuthConfig       AuthConfig
	RateLimitConfig  RateLimitConfig
	PriceFeedConfig  PriceFeedConfig
	RedisConfig      RedisConfig
	RabbitMqConfig   RabbitMqConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
	SnapshotConfig   SnapshotConfig
	ExportConfig     ExportConfig
	LogConfig        LogConfig
}

var (
	Debug = "debug"

	DatabaseDriverName  = "database.driver"
	DatabaseHost        = "database.host"
	DatabasePort        = "database.port"
	DatabaseUser        = "database.user"
	DatabasePassword    = "database.password"
	DatabaseDbName      = "database.db_name"
	DatabaseSchemaName  = "database.schema_name"
	DatabaseSSLMode     = "database.ssl_mode"
	DatabaseSSLCert     = "database.ssl_cert"
	DatabaseSSLKey      = "database.ssl_key"
	DatabaseSSLRootCert = "database.ssl_root_cert"
	DatabaseSqlitePath  = "database.sqlite_path"

	StakingDisplayedApy    = "staking.displayed_apy"
	StakingActualApy       = "staking.actual_apy"
	StakingAccrualInterval = "staking.accrual_interval"
	StakingMinStake        = "staking.min_stake"
	StakingMinPostable     = "staking.min_postable"
	StakingReferralRate    = "staking.referral_rate"
	StakingCoinsFile       = "staking.coins_file"
	StakingDefaultCoin     = "staking.default_coin"

	RpcHttpPort           = "rpc.http_port"
	RpcCorsAllowedOrigins = "rpc.cors_allowed_origins"

	AuthJwtSecret   = "auth.jwt_secret"
	AuthTokenTtl    = "auth.token_ttl_minutes"
	AuthBcryptCost  = "auth.bcrypt_cost"
	AuthAdminEmails = "auth.admin_emails"

	RateLimitEnabled           = "rate_limit.enabled"
	RateLimitRequestsPerMinute = "rate_limit.requests_per_minute"
	RateLimitBurst             = "rate_limit.burst"

	PriceFeedBaseUrl  = "price_feed.base_url"
	PriceFeedApiKey   = "price_feed.api_key"
	PriceFeedCacheTtl = "price_feed.cache_ttl_seconds"
	PriceFeedTimeout  = "price_feed.timeout_seconds"

	RedisEnabled  = "redis.enabled"
	RedisAddr     = "redis.addr"
	RedisPassword = "redis.password"
	RedisDb       = "redis.db"

	RabbitMqEnabled  = "rabbitmq.enabled"
	RabbitMqUrl      = "rabbitmq.url"
	RabbitMqUsername = "rabbitmq.username"
	RabbitMqPassword = "rabbitmq.password"
	RabbitMqSecure   = "rabbitmq.secure"
	RabbitMqExchange = "rabbitmq.exchange"

	PrometheusEnabled = "prometheus.enabled"
	PrometheusPort    = "prometheus.port"

	DataDogStatsdEnabled    = "datadog.statsd.enabled"
	DataDogStatsdUrl        = "datadog.statsd.url"
	DataDogStatsdSampleRate = "datadog.statsd.sample_rate"

	SnapshotOutputFile = "snapshot.output_file"
	SnapshotInputFile  = "snapshot.input_file"

	ExportOutputFile = "export.output_file"

	LogFile = "log.file"
)

// Reference values used when neither a flag, env var nor a staking_settings row is present.
var (
	DefaultDisplayedApy = decimal.RequireFromString("3.00")
	DefaultActualApy    = decimal.RequireFromString("3.57")
	DefaultMinStake     = decimal.RequireFromString("0.01")
	DefaultMinPostable  = decimal.RequireFromString("0.00000001")
	DefaultReferralRate = decimal.RequireFromString("0.01")
)

const DefaultAccrualIntervalSeconds = 60

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		DatabaseConfig: DatabaseConfig{
			Driver:      parseDatabaseDriver(viper.GetString(normalizeFlagName(DatabaseDriverName))),
			Host:        viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:        viper.GetInt(normalizeFlagName(DatabasePort)),
			User:        viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:    viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:      viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName:  viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:     viper.GetString(normalizeFlagName(DatabaseSSLMode)),
			SSLCert:     viper.GetString(normalizeFlagName(DatabaseSSLCert)),
			SSLKey:      viper.GetString(normalizeFlagName(DatabaseSSLKey)),
			SSLRootCert: viper.GetString(normalizeFlagName(DatabaseSSLRootCert)),
			SqlitePath:  viper.GetString(normalizeFlagName(DatabaseSqlitePath)),
		},

		StakingConfig: StakingConfig{
			DisplayedApy:    parseDecimal(viper.GetString(normalizeFlagName(StakingDisplayedApy)), DefaultDisplayedApy),
			ActualApy:       parseDecimal(viper.GetString(normalizeFlagName(StakingActualApy)), DefaultActualApy),
			AccrualInterval: viper.GetInt(normalizeFlagName(StakingAccrualInterval)),
			MinStake:        parseDecimal(viper.GetString(normalizeFlagName(StakingMinStake)), DefaultMinStake),
			MinPostable:     parseDecimal(viper.GetString(normalizeFlagName(StakingMinPostable)), DefaultMinPostable),
			ReferralRate:    parseDecimal(viper.GetString(normalizeFlagName(StakingReferralRate)), DefaultReferralRate),
			CoinsFile:       viper.GetString(normalizeFlagName(StakingCoinsFile)),
			DefaultCoin:     viper.GetString(normalizeFlagName(StakingDefaultCoin)),
		},

		RpcConfig: RpcConfig{
			HttpPort:           viper.GetInt(normalizeFlagName(RpcHttpPort)),
			CorsAllowedOrigins: viper.GetStringSlice(normalizeFlagName(RpcCorsAllowedOrigins)),
		},

		AuthConfig: AuthConfig{
			JwtSecret:       viper.GetString(normalizeFlagName(AuthJwtSecret)),
			TokenTtlMinutes: viper.GetInt(normalizeFlagName(AuthTokenTtl)),
			BcryptCost:      viper.GetInt(normalizeFlagName(AuthBcryptCost)),
			AdminEmails:     viper.GetStringSlice(normalizeFlagName(AuthAdminEmails)),
		},

		RateLimitConfig: RateLimitConfig{
			Enabled:           viper.GetBool(normalizeFlagName(RateLimitEnabled)),
			RequestsPerMinute: viper.GetFloat64(normalizeFlagName(RateLimitRequestsPerMinute)),
			Burst:             viper.GetInt(normalizeFlagName(RateLimitBurst)),
		},

		PriceFeedConfig: PriceFeedConfig{
			BaseUrl:         viper.GetString(normalizeFlagName(PriceFeedBaseUrl)),
			ApiKey:          viper.GetString(normalizeFlagName(PriceFeedApiKey)),
			CacheTtlSeconds: viper.GetInt(normalizeFlagName(PriceFeedCacheTtl)),
			TimeoutSeconds:  viper.GetInt(normalizeFlagName(PriceFeedTimeout)),
		},

		RedisConfig: RedisConfig{
			Enabled:  viper.GetBool(normalizeFlagName(RedisEnabled)),
			Addr:     viper.GetString(normalizeFlagName(RedisAddr)),
			Password: viper.GetString(normalizeFlagName(RedisPassword)),
			Db:       viper.GetInt(normalizeFlagName(RedisDb)),
		},

		RabbitMqConfig: RabbitMqConfig{
			Enabled:  viper.GetBool(normalizeFlagName(RabbitMqEnabled)),
			Url:      viper.GetString(normalizeFlagName(RabbitMqUrl)),
			Username: viper.GetString(normalizeFlagName(RabbitMqUsername)),
			Password: viper.GetString(normalizeFlagName(RabbitMqPassword)),
			Secure:   viper.GetBool(normalizeFlagName(RabbitMqSecure)),
			Exchange: viper.GetString(normalizeFlagName(RabbitMqExchange)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled:    viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:        viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
				SampleRate: viper.GetFloat64(normalizeFlagName(DataDogStatsdSampleRate)),
			},
		},

		SnapshotConfig: SnapshotConfig{
			OutputFile: viper.GetString(normalizeFlagName(SnapshotOutputFile)),
			InputFile:  viper.GetString(normalizeFlagName(SnapshotInputFile)),
		},

		ExportConfig: ExportConfig{
			OutputFile: viper.GetString(normalizeFlagName(ExportOutputFile)),
		},

		LogConfig: LogConfig{
			File: viper.GetString(normalizeFlagName(LogFile)),
		},
	}
}

// NewDefaultConfig returns a config populated with the reference values, ignoring viper.
// Used by tests and tooling that do not go through cobra.
func NewDefaultConfig() *Config {
	return &Config{
		DatabaseConfig: DatabaseConfig{
			Driver:     DatabaseDriver_Postgres,
			Host:       "localhost",
			Port:       5432,
			User:       "stakedash",
			DbName:     "stakedash",
			SqlitePath: "stakedash.db",
		},
		StakingConfig: StakingConfig{
			DisplayedApy:    DefaultDisplayedApy,
			ActualApy:       DefaultActualApy,
			AccrualInterval: DefaultAccrualIntervalSeconds,
			MinStake:        DefaultMinStake,
			MinPostable:     DefaultMinPostable,
			ReferralRate:    DefaultReferralRate,
			DefaultCoin:     "ETH",
		},
		RpcConfig: RpcConfig{
			HttpPort: 7101,
		},
		AuthConfig: AuthConfig{
			JwtSecret:       "insecure-development-secret",
			TokenTtlMinutes: 60,
			BcryptCost:      10,
		},
		RateLimitConfig: RateLimitConfig{
			RequestsPerMinute: 120,
			Burst:             20,
		},
		PriceFeedConfig: PriceFeedConfig{
			BaseUrl:         "https://api.coingecko.com/api/v3",
			CacheTtlSeconds: 60,
			TimeoutSeconds:  5,
		},
		RabbitMqConfig: RabbitMqConfig{
			Exchange: "stakedash",
		},
		PrometheusConfig: PrometheusConfig{
			Port: 2112,
		},
		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{SampleRate: 1.0},
		},
	}
}

// GetAccrualIntervalSeconds returns the materializer interval, falling back to the reference 60s.
func (c *Config) GetAccrualIntervalSeconds() int64 {
	if c.StakingConfig.AccrualInterval <= 0 {
		return DefaultAccrualIntervalSeconds
	}
	return int64(c.StakingConfig.AccrualInterval)
}

func (c *Config) GetDefaultCoin() string {
	if c.StakingConfig.DefaultCoin == "" {
		return "ETH"
	}
	return strings.ToUpper(c.StakingConfig.DefaultCoin)
}

// IsAdminEmail reports whether the email is listed in auth.admin_emails.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AuthConfig.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if c.StakingConfig.DisplayedApy.IsNegative() {
		return fmt.Errorf("%s must not be negative", StakingDisplayedApy)
	}
	if c.StakingConfig.ActualApy.IsNegative() {
		return fmt.Errorf("%s must not be negative", StakingActualApy)
	}
	if c.StakingConfig.MinStake.IsNegative() {
		return fmt.Errorf("%s must not be negative", StakingMinStake)
	}
	if c.StakingConfig.ReferralRate.IsNegative() || c.StakingConfig.ReferralRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", StakingReferralRate)
	}
	if c.DatabaseConfig.Driver != DatabaseDriver_Postgres && c.DatabaseConfig.Driver != DatabaseDriver_Sqlite {
		return fmt.Errorf("unsupported database driver '%s'", c.DatabaseConfig.Driver)
	}
	return nil
}

func parseDatabaseDriver(d string) DatabaseDriver {
	switch strings.ToLower(d) {
	case "sqlite":
		return DatabaseDriver_Sqlite
	default:
		return DatabaseDriver_Postgres
	}
}

func parseDecimal(s string, defaultVal decimal.Decimal) decimal.Decimal {
	if s == "" {
		return defaultVal
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func KebabToSnakeCase(str string) string {
	return strings.ReplaceAll(str, "-", "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}
