// Package cmd implements the goguard command line.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "GOGUARD"

var (
	cfgFile string
	verbose bool

	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by the main package with linker-provided values.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootCmd = &cobra.Command{
	Use:           "goguard",
	Short:         "Adaptive rate limiting and brute-force protection",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./goguard.yaml or ./config/goguard.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(serveCmd, loadtestCmd, statsCmd, configCmd, tokenCmd, perfCmd, versionCmd)
}

// initConfig reads .env, the config file, and GOGUARD_* environment variables.
func initConfig() {
	// A missing .env is the common case.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("goguard")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintf(os.Stderr, "error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

func setDefaults() {
	viper.SetDefault("profile", "default")
	viper.SetDefault("logging.level", "info")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("redis.addr", "")
	viper.SetDefault("attempt_log.dialect", "")
	viper.SetDefault("attempt_log.dsn", "")

	viper.SetDefault("admin.secret", "")
	viper.SetDefault("admin.issuer", "goguard")
	viper.SetDefault("admin.token_ttl", "1h")
}

// newLogger builds the process logger. Production encoding unless verbose.
func newLogger() (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(viper.GetString("logging.level"))); err != nil {
		return nil, fmt.Errorf("invalid logging.level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if verbose || viper.GetBool("verbose") {
		cfg = zap.NewDevelopmentConfig()
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}
