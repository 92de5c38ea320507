package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "arc-server",
	Short:        "A.R.C. chat backend",
	SilenceUsage: true,
	Long: `arc-server runs the password-gated A.R.C. chat API. Prompts go to an ordered
chain of LLM providers; the first one that answers wins.

Configuration is read from the environment and an optional .env file.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd, hashCodeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
