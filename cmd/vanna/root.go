package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "vanna",
		Short: "Vanna is a tool-calling agent for talking to your data",
		Long: `Vanna runs an LLM agent that answers questions by calling tools:
SQL queries, a per-user file area, agent memory and shell commands.

It can serve a streaming chat API, chat in the terminal, expose its tools
over MCP, and evaluate agent variants against a dataset.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newServeCmd(flags),
		newChatCmd(flags),
		newEvalCmd(flags),
		newMCPCmd(flags),
		newModelsCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
