// Package main implements the echolingo service and its operational
// commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/jthomaschappell/echolingo-resurgence/internal/config"
	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	envFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "echolingo",
	Short: "Bilingual WhatsApp relay between field crews and their supervisor",
	Long: `echolingo relays Spanish voice messages from field workers to an
English-speaking supervisor over WhatsApp, turns supply needs into
approvable requests, and streams supervisor decisions back to workers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (0600)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration; missing files are ignored")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig applies the dotenv file, without overriding variables that
// are already set, then loads configuration.
func loadConfig() (*config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return config.Load(configPath)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "echolingo\n")
		fmt.Fprintf(cmd.OutOrStdout(), "Version:    %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "Commit:     %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "Build Date: %s\n", buildDate)
	},
}
