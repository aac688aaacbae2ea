package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single discover, extract and notify pass",
	Long: `Run one pass over the deals board: discover posts inside the recency
window, extract new ones, email every unsent deal and save the table.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	report, err := p.controller.Run(ctx)
	if err != nil {
		return err
	}

	if !quiet {
		if report.NoNewPosts {
			fmt.Println("No new posts.")
			return nil
		}
		fmt.Printf("New posts:     %d\n", report.Added)
		fmt.Printf("Extracted:     %d (%d failed)\n", report.Extracted, report.ExtractFailures)
		fmt.Printf("Notifications: %d (%d failed)\n", report.Notified, report.NotifyFailures)
	}
	return nil
}
