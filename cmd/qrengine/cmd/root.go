package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/qrengine/internal/config"
	"github.com/MeKo-Tech/qrengine/internal/pipeline"
	"github.com/MeKo-Tech/qrengine/internal/version"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qrengine",
	Short: "QR code generation and multi-symbol scanning",
	Long: `qrengine generates styled QR codes and finds and decodes every QR symbol
in images and PDF documents.

This tool provides:
- Symbol generation with all 40 versions and four error correction levels
- Styled PNG output (module shapes, eye shapes, colour masks, embedded logos)
- SVG and terminal output
- Multi-symbol scanning with a multi-scale preprocessing ladder
- PDF scanning of embedded images
- An HTTP and WebSocket server

Examples:
  qrengine generate "https://example.com" -o code.png
  qrengine scan photo.jpg --format json
  qrengine scan invoice.pdf --pages 1-2
  qrengine serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), version.String())
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME/.config/qrengine, /etc/qrengine)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Int("max-workers", 0, "scan worker goroutines (0 = number of CPUs)")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	mustBind("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	mustBind("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	mustBind("limits.max_workers", rootCmd.PersistentFlags().Lookup("max-workers"))

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		level := parseLogLevel(globalConfig.LogLevel)
		if globalConfig.Verbose {
			level = slog.LevelDebug
		}
		// Logs go to stderr so that generated text and scan results own stdout.
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
	}
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initConfig reads in config file and ENV variables if set. Values are
// validated once the command has applied its flags, so a bad flag is
// reported as that command's error.
func initConfig() {
	configLoader = config.NewLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFileWithoutValidation(cfgFile)
	} else {
		globalConfig, err = configLoader.LoadWithoutValidation()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
}

// GetConfig returns the global configuration.
func GetConfig() *config.Config {
	if globalConfig == nil {
		initConfig()
	}

	// Flags are bound after the initial load; re-read so they take effect.
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error unmarshaling updated configuration: %v\n", err)
		return globalConfig
	}
	return &cfg
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}

// newPipeline builds the engine from the effective configuration.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	p, err := pipeline.NewBuilder().WithConfig(cfg.ToPipelineConfig()).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	return p, nil
}

type flagBinding struct {
	key  string
	flag string
}

// bindFlags binds each flag of cmd to its viper key.
func bindFlags(cmd *cobra.Command, bindings []flagBinding) {
	for _, b := range bindings {
		mustBind(b.key, cmd.Flags().Lookup(b.flag))
	}
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", key, err))
	}
}
