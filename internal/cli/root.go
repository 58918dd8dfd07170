// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certslot.
//
// go-certslot is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Global configuration
	globalConfig *Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "certslot",
	Short: "go-certslot CLI - Multi-slot X.509 certificate issuance",
	Long: `go-certslot issues X.509 certificates across isolated key slots.
Private keys never leave the slot that generated them; public keys and
signed certificates move between slots through a checked transfer.

Supported slot types:
  - pkcs8:   software slot with PKCS#8 key storage
  - pkcs11:  PKCS#11 hardware security module (build tag pkcs11)

Flags may also be set through CERTSLOT_* environment variables,
for example CERTSLOT_CONFIG or CERTSLOT_OUTPUT.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadFlags(viper.GetViper(), globalConfig)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	globalConfig = NewConfig()

	flags := rootCmd.PersistentFlags()
	flags.String("config", "certslot.yaml", "configuration file")
	flags.StringP("output", "o", "text", "output format (text, json, table)")
	flags.String("log-level", "", "log level override (debug, info, warn, error)")
	flags.String("data-dir", "", "storage directory override")
	flags.BoolP("verbose", "v", false, "verbose output")

	if err := bindFlags(rootCmd, viper.GetViper()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(issueCmd)
	rootCmd.AddCommand(slotsCmd)
	rootCmd.AddCommand(inspectCmd)
}

// bindFlags binds the persistent flags to v, with CERTSLOT_ environment
// variables as fallback.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix("CERTSLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(cmd.PersistentFlags())
}

// loadFlags copies the bound values into cfg.
func loadFlags(v *viper.Viper, cfg *Config) error {
	cfg.ConfigFile = v.GetString("config")
	cfg.OutputFormat = v.GetString("output")
	cfg.LogLevel = v.GetString("log-level")
	cfg.DataDir = v.GetString("data-dir")
	cfg.Verbose = v.GetBool("verbose")

	switch OutputFormat(cfg.OutputFormat) {
	case OutputFormatText, OutputFormatJSON, OutputFormatTable:
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", cfg.OutputFormat)
	}
}

// getConfig returns the global configuration
func getConfig() *Config {
	return globalConfig
}

// handleError prints an error and exits with code 1
func handleError(err error) {
	printer := NewPrinter(globalConfig.OutputFormat, os.Stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
	os.Exit(1)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if globalConfig.Verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] "+format+"\n", args...)
	}
}
