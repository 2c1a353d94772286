package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikey/reply-intel/internal/config"
)

var (
	cfg        *config.Config
	configFile string
	verbose    bool
	jsonLog    bool
	provider   string
	format     string
)

var rootCmd = &cobra.Command{
	Use:   "reply-intel",
	Short: "Find genuinely interested leads among campaign replies",
	Long: "Fetches inbound replies from outreach platforms, filters automated and negative replies, " +
		"classifies the rest with an LLM, discards replies sent too quickly after a campaign email " +
		"and marks the remaining leads as interested.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			c.Set("logging.level", "debug")
			c.Set("report.verbose", true)
		}
		if jsonLog {
			c.Set("logging.format", "json")
		} else if configFile == "" {
			c.Set("logging.format", "console")
		}
		if provider != "" {
			c.Set("llm.provider", provider)
		}
		if format != "" {
			c.Set("report.format", format)
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging and detailed reports")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "LLM provider (anthropic, bedrock, gemini, openai)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "", "report format (text, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
