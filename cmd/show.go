package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacklau/clusterkit/internal/store"
)

var showDelete bool

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a saved clustering run",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showDelete, "delete", false, "delete the run instead of printing it")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	id, err := parseRunID(args[0])
	if err != nil {
		return err
	}

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

	if showDelete {
		if err := db.DeleteRun(id); err != nil {
			if errors.Is(err, store.ErrRunNotFound) {
				return fmt.Errorf("run #%d not found", id)
			}
			return fmt.Errorf("deleting run: %w", err)
		}
		fmt.Fprintf(out, "Deleted run #%d.\n", id)
		return nil
	}

	r, err := db.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return fmt.Errorf("run #%d not found", id)
		}
		return fmt.Errorf("loading run: %w", err)
	}
	return r.Write(out, cfg.Defaults.MaxMembersShown)
}
