package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pauljones0/fly4deals/internal/state"
	"github.com/pauljones0/fly4deals/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the post table summary and unsent posts",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening %s state: %w", cfg.StateBackend, err)
	}
	defer store.Close()

	table, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading state: %w", err)
	}
	sum := state.Summarize(table)

	fmt.Println("=== State ===")
	fmt.Printf("Backend:   %s\n", cfg.StateBackend)
	fmt.Printf("Posts:     %d\n", sum.Total)
	fmt.Printf("Extracted: %d\n", sum.Extracted)
	fmt.Printf("Checked:   %d\n", sum.Checked)
	fmt.Printf("Pending:   %d\n", sum.Pending)

	if sum.Pending == 0 {
		return nil
	}

	fmt.Println()
	fmt.Println("=== Pending ===")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tSTAGE\tTITLE")
	for _, r := range table {
		if r.Checked {
			continue
		}
		stage := "extract"
		if r.Processed() {
			stage = "notify"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.CreatedAt.In(cfg.Location).Format(storage.TimeLayout), stage, r.Title)
	}
	return w.Flush()
}
