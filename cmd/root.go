// Package cmd wires the foundry-jumpstart command tree.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/cmd/advisor"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/cmd/mcp"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/cmd/persistent"
	"github.com/PlagueHO/microsoft-foundry-jumpstart-sub001/cmd/server"
)

// rootCmd is the base command; every sample hangs off it as a subcommand.
var rootCmd = &cobra.Command{
	Use:   "foundry-jumpstart",
	Short: "Azure AI Foundry agent samples",
	Long: `Samples for running AI agents against an Azure AI Foundry model deployment:
a persistent agent whose definition and conversation history survive across
runs, an architecture advisor that reviews designs against the Azure Well
Architected Framework, and an API server exposing both over HTTP.`,
	SilenceUsage: true,
}

// Execute runs the root command. It is called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("log-file", "", "log file path (default logs/foundry_jumpstart.log)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("trace-provider", "", "trace provider (log, noop); defaults to TRACE_PROVIDER")
	rootCmd.PersistentFlags().String("history-db", "", "SQLite history database path; defaults to HISTORY_DB_PATH")
	rootCmd.PersistentFlags().Int("max-turns", 10, "maximum model rounds per run")
	rootCmd.PersistentFlags().Float64("temperature", 0, "sampling temperature override")

	viper.BindPFlag("log-file", rootCmd.PersistentFlags().Lookup("log-file"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("trace-provider", rootCmd.PersistentFlags().Lookup("trace-provider"))
	viper.BindPFlag("history-db", rootCmd.PersistentFlags().Lookup("history-db"))
	viper.BindPFlag("max-turns", rootCmd.PersistentFlags().Lookup("max-turns"))
	viper.BindPFlag("temperature", rootCmd.PersistentFlags().Lookup("temperature"))

	rootCmd.AddCommand(persistent.Cmd)
	rootCmd.AddCommand(advisor.Cmd)
	rootCmd.AddCommand(server.Cmd)
	rootCmd.AddCommand(mcp.Cmd)
}

// initConfig loads a .env file when one is present and lets real environment
// variables satisfy any viper key.
func initConfig() {
	if err := godotenv.Load(".env"); err != nil {
		if err := godotenv.Load("../.env"); err != nil {
			fmt.Fprintln(os.Stderr, "No .env file found, using system environment variables")
		}
	}
	viper.AutomaticEnv()
}
