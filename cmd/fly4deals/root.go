package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "fly4deals",
	Short: "Watch the fly4free forum for flight deals",
	Long: `fly4deals polls the fly4free.pl deals board, extracts the route and
price of every new post with Gemini and emails a one-line summary.

State is kept in an append-only table so each post is processed once.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default ./fly4deals.toml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-error output")
}
