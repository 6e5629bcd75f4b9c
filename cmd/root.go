package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stakewell/stakedash/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "stakedash",
	Short: "Stakedash runs the staking dashboard API and the rewards materializer",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadDotEnv)
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool("debug", false, `"true" or "false"`)
	rootCmd.PersistentFlags().String(config.LogFile, "", `Also write JSON logs to this file, rotated by size`)

	rootCmd.PersistentFlags().String(config.DatabaseDriverName, "postgres", `Database driver, "postgres" or "sqlite"`)
	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "stakedash", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "stakedash", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL sslmode`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLCert, "", `PostgreSQL client certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLKey, "", `PostgreSQL client key`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLRootCert, "", `PostgreSQL root certificate`)
	rootCmd.PersistentFlags().String(config.DatabaseSqlitePath, "stakedash.db", `Sqlite database file when the driver is sqlite`)

	rootCmd.PersistentFlags().String(config.StakingDisplayedApy, config.DefaultDisplayedApy.String(), `APY shown to and paid to users, in percent`)
	rootCmd.PersistentFlags().String(config.StakingActualApy, config.DefaultActualApy.String(), `APY earned by the operator, in percent`)
	rootCmd.PersistentFlags().Int(config.StakingAccrualInterval, config.DefaultAccrualIntervalSeconds, `Seconds between reward materializations`)
	rootCmd.PersistentFlags().String(config.StakingMinStake, config.DefaultMinStake.String(), `Minimum active stake that earns rewards`)
	rootCmd.PersistentFlags().String(config.StakingMinPostable, config.DefaultMinPostable.String(), `Smallest reward amount that is written to the ledger`)
	rootCmd.PersistentFlags().String(config.StakingReferralRate, config.DefaultReferralRate.String(), `Fraction of each reward paid to the referrer`)
	rootCmd.PersistentFlags().String(config.StakingCoinsFile, "", `YAML coin catalogue (default: embedded catalogue)`)
	rootCmd.PersistentFlags().String(config.StakingDefaultCoin, "ETH", `Coin used when a request does not name one`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http rpc port`)
	rootCmd.PersistentFlags().StringSlice(config.RpcCorsAllowedOrigins, []string{}, `Allowed CORS origins (default "*")`)

	rootCmd.PersistentFlags().String(config.AuthJwtSecret, "", `HMAC secret used to sign session tokens`)
	rootCmd.PersistentFlags().Int(config.AuthTokenTtl, 60, `Session token lifetime in minutes`)
	rootCmd.PersistentFlags().Int(config.AuthBcryptCost, 10, `bcrypt cost for password hashes`)
	rootCmd.PersistentFlags().StringSlice(config.AuthAdminEmails, []string{}, `Emails that are registered as admins`)

	rootCmd.PersistentFlags().Bool(config.RateLimitEnabled, true, `Rate limit requests per client address`)
	rootCmd.PersistentFlags().Float64(config.RateLimitRequestsPerMinute, 120, `Sustained requests per minute per client`)
	rootCmd.PersistentFlags().Int(config.RateLimitBurst, 20, `Burst size per client`)

	rootCmd.PersistentFlags().String(config.PriceFeedBaseUrl, "https://api.coingecko.com/api/v3", `CoinGecko compatible price API`)
	rootCmd.PersistentFlags().String(config.PriceFeedApiKey, "", `Price API key`)
	rootCmd.PersistentFlags().Int(config.PriceFeedCacheTtl, 60, `Seconds a fetched price is served from cache`)
	rootCmd.PersistentFlags().Int(config.PriceFeedTimeout, 5, `Price API request timeout in seconds`)

	rootCmd.PersistentFlags().Bool(config.RedisEnabled, false, `Cache prices in redis instead of memory`)
	rootCmd.PersistentFlags().String(config.RedisAddr, "localhost:6379", `Redis address`)
	rootCmd.PersistentFlags().String(config.RedisPassword, "", `Redis password`)
	rootCmd.PersistentFlags().Int(config.RedisDb, 0, `Redis database`)

	rootCmd.PersistentFlags().Bool(config.RabbitMqEnabled, false, `Publish domain events to RabbitMQ`)
	rootCmd.PersistentFlags().String(config.RabbitMqUrl, "localhost:5672", `RabbitMQ host:port`)
	rootCmd.PersistentFlags().String(config.RabbitMqUsername, "guest", `RabbitMQ username`)
	rootCmd.PersistentFlags().String(config.RabbitMqPassword, "guest", `RabbitMQ password`)
	rootCmd.PersistentFlags().Bool(config.RabbitMqSecure, false, `Connect with amqps`)
	rootCmd.PersistentFlags().String(config.RabbitMqExchange, "stakedash", `Topic exchange events are published to`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)
	rootCmd.PersistentFlags().Float64(config.DataDogStatsdSampleRate, 1.0, `The sample rate to use for statsd metrics`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(materializeCmd)
	rootCmd.AddCommand(adminReportCmd)
	rootCmd.AddCommand(exportLedgerCmd)
	rootCmd.AddCommand(createSnapshotCmd)
	rootCmd.AddCommand(restoreSnapshotCmd)
	rootCmd.AddCommand(runVersionCmd)

	// bind any subcommand flags
	createSnapshotCmd.PersistentFlags().String(config.SnapshotOutputFile, "", "Path to save the snapshot file to (required)")
	restoreSnapshotCmd.PersistentFlags().String(config.SnapshotInputFile, "", "Path to the snapshot file (required)")
	restoreSnapshotCmd.PersistentFlags().Bool("skip-hash-validation", false, "Restore even when the .sha256 file is missing")
	exportLedgerCmd.PersistentFlags().String(config.ExportOutputFile, "", "Path to write the CSV to (default: stdout)")
	exportLedgerCmd.PersistentFlags().Bool("include-incomplete", false, "Also export pending and failed transactions")
	materializeCmd.PersistentFlags().String("tick-time", "", "RFC3339 tick time (default: now)")
	adminReportCmd.PersistentFlags().String("as-of", "", "RFC3339 report time (default: now)")

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// loadDotEnv reads a .env file from the working directory when one exists. Real environment
// variables win over the file.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Failed to load .env file - %+v\n", err)
	}
}

// bindCommandFlags binds the flags local to a subcommand, the way every subcommand does
// before reading config.
func bindCommandFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(config.KebabToSnakeCase(f.Name), f); err != nil {
			fmt.Printf("Failed to bind flag '%s' - %+v\n", f.Name, err)
		}
		if err := viper.BindEnv(f.Name); err != nil {
			fmt.Printf("Failed to bind env '%s' - %+v\n", f.Name, err)
		}
	})
}
