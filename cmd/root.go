// Package cmd provides the lazyns command-line interface.
//
// The CLI inspects, validates and watches spec files describing lazy
// namespaces. Configuration is read from several sources, highest
// precedence first:
//
//  1. Command-line flags (--config, --log-level, ...)
//  2. Environment variables with the LAZYNS_ prefix (LAZYNS_LOG_LEVEL,
//     LAZYNS_RUNTIME_EAGER, ...)
//  3. The configuration file: --config, then LAZYNS_CONFIG_FILE, then
//     .lazyns.yml in the current directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/lazyns/internal/config"
	"github.com/conneroisu/lazyns/internal/logging"
	"github.com/conneroisu/lazyns/pkg/importer"
	"github.com/conneroisu/lazyns/pkg/lazyns"
	"github.com/conneroisu/lazyns/pkg/registry"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lazyns",
	Short: "Inspect and check lazy namespace spec files",
	Long: `lazyns works with spec files that declare lazy namespaces: public names
mapped to "<unit>:<attr.chain>" locations that resolve on first access.

Quick Start:
  lazyns validate api.yaml       Check one or more spec files
  lazyns inspect api.yaml        Print the namespace tree
  lazyns watch api.yaml          Re-initialize on every change

Spec files are YAML (.yaml, .yml), TOML (.toml) or the line format
"<dotted.name> <location>" used for anything else.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .lazyns.yml, can also use LAZYNS_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig points viper at the configuration file and the LAZYNS_
// environment. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("LAZYNS_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lazyns")
	}

	viper.SetEnvPrefix("LAZYNS")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadSettings loads the configuration and builds the logger it asks for.
// Log output goes to the command's error stream.
func loadSettings(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	lc, err := cfg.LoggerConfig()
	if err != nil {
		return nil, nil, err
	}
	lc.Output = cmd.ErrOrStderr()
	return cfg, logging.NewLogger(lc).WithComponent("cli"), nil
}

// newRuntime builds a runtime with its own registry so that commands never
// touch the process-wide namespace.
func newRuntime(cfg *config.Config, logger logging.Logger) *lazyns.Runtime {
	im := importer.New(registry.New())
	return lazyns.New(append(cfg.RuntimeOptions(logger), lazyns.WithImporter(im))...)
}
