package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacklau/clusterkit/internal/github"
)

var (
	issuesOpts  clusterFlags
	issuesLimit int
)

const defaultIssuesLimit = 500

var issuesCmd = &cobra.Command{
	Use:   "issues <owner/repo>",
	Short: "Cluster the titles of a repository's open issues",
	Long: `Issues fetches the open issues of a GitHub repository (pull requests are
skipped) and clusters their titles. Authentication follows the github section
of the config; without it public repositories are read anonymously.`,
	Args: cobra.ExactArgs(1),
	RunE: runIssues,
}

func init() {
	issuesOpts.register(issuesCmd)
	issuesCmd.Flags().IntVar(&issuesLimit, "limit", defaultIssuesLimit, "maximum number of issues to fetch (0 for all)")
	rootCmd.AddCommand(issuesCmd)
}

func runIssues(cmd *cobra.Command, args []string) error {
	owner, repo, err := github.ParseRepo(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client, err := createGitHubClient(cfg)
	if err != nil {
		return err
	}

	logger := setupLogger()
	logger.Info("fetching open issues", "repo", args[0], "limit", issuesLimit)

	issues, err := github.ListOpenIssues(cmd.Context(), client, owner, repo, issuesLimit, github.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("listing issues: %w", err)
	}
	if len(issues) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No open issues in %s/%s.\n", owner, repo)
		return nil
	}

	return runClustering(cmd.Context(), cmd, cfg, &issuesOpts, owner+"/"+repo, github.Titles(issues))
}
