package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/inpaint/internal/config"
	"github.com/MeKo-Tech/inpaint/internal/models"
	"github.com/MeKo-Tech/inpaint/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
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
	Use:   "inpaint",
	Short: "Polygon-guided image inpainting",
	Long: `Remove the content inside polygons from an image and fill the holes with
a learned inpainting model.

Each polygon is cut out together with a context window, resized to the
model resolution, inpainted with ONNX Runtime and blended back into the
image. Touching polygons are merged into a single region first.

Examples:
  inpaint image photo.jpg --polygons photo.polygons.yaml
  inpaint batch scans/ --recursive --workers 8
  inpaint serve --port 8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, _ := cmd.PersistentFlags().GetBool("version")
		if v {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "inpaint version "+version.String())
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
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $HOME/.config/inpaint, /etc/inpaint)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	defaultModelsDir := models.DefaultModelsDir
	if envDir := os.Getenv(models.EnvModelsDir); envDir != "" {
		defaultModelsDir = envDir
	}
	rootCmd.PersistentFlags().String("models-dir", defaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")

	for key, flag := range map[string]string{
		"verbose":    "verbose",
		"log_level":  "log-level",
		"models_dir": "models-dir",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", flag, err))
		}
	}

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if globalConfig == nil {
			initConfig()
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel(globalConfig),
		})))
	}
}

// logLevel maps the configured level name; --verbose wins.
func logLevel(cfg *config.Config) slog.Level {
	if cfg.Verbose {
		return slog.LevelDebug
	}
	switch cfg.LogLevel {
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

// initConfig reads in config file and ENV variables if set. Validation
// happens in GetConfig so that a bad flag surfaces as a command error.
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

// GetConfig returns the configuration with CLI flags applied. Flags are
// bound after the first load, so the viper state is decoded and validated
// again here.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		initConfig()
	}
	return GetConfigLoader().Resolve()
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
