package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jacklau/clusterkit/internal/notify"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved clustering runs and store statistics",
	Long: `Display the most recent runs saved with --save, newest first, followed by
totals for runs, groups and cached embeddings and the database size.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := openStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No saved runs yet.")
		fmt.Fprintln(out, "Run 'clusterkit cluster --save <file>' or 'clusterkit issues --save <owner/repo>' to record one.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSOURCE\tFEATURES\tLINKAGE\tTHRESHOLD\tTEXTS\tGROUPS\tCREATED")
	fmt.Fprintln(w, "--\t------\t--------\t-------\t---------\t-----\t------\t-------")
	for _, r := range runs {
		source := r.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%d\t%d\t%s\n",
			r.ID, source, r.Features, r.Linkage, r.Threshold, r.Texts, r.Groups, notify.TimeAgo(r.CreatedAt))
	}
	w.Flush()

	stats, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("querying stats: %w", err)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Runs: %d  Groups: %d  Cached embeddings: %d\n", stats.Runs, stats.Groups, stats.Embeddings)

	if info, err := os.Stat(cfg.Store.Path); err == nil {
		fmt.Fprintf(out, "Database: %s (%s)\n", cfg.Store.Path, formatBytes(info.Size()))
	} else {
		fmt.Fprintf(out, "Database: %s (size unknown)\n", cfg.Store.Path)
	}
	return nil
}

// formatBytes formats bytes into a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
