package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	clusterOpts  clusterFlags
	clusterTexts []string
)

var clusterCmd = &cobra.Command{
	Use:   "cluster [file|-]",
	Short: "Cluster texts read from a file, stdin or --text",
	Long: `Cluster reads one text per non-blank line from a file (or stdin with "-"
or no argument) and groups similar texts. Texts can also be given with
repeated --text flags.`,
	Example: `  clusterkit cluster titles.txt
  cat titles.txt | clusterkit cluster --linkage complete --threshold 0.4
  clusterkit cluster --text "login fails" --text "cannot login" --matrix`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCluster,
}

func init() {
	clusterOpts.register(clusterCmd)
	clusterCmd.Flags().StringArrayVarP(&clusterTexts, "text", "t", nil, "text to cluster (repeatable)")
	rootCmd.AddCommand(clusterCmd)
}

func runCluster(cmd *cobra.Command, args []string) error {
	texts := append([]string(nil), clusterTexts...)
	source := ""

	if len(args) == 1 || len(texts) == 0 {
		var r io.Reader = cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening input: %w", err)
			}
			defer f.Close()
			r = f
			source = args[0]
		}
		read, err := readTexts(r)
		if err != nil {
			return err
		}
		texts = append(texts, read...)
	}

	if len(texts) == 0 {
		return fmt.Errorf("no texts to cluster")
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return runClustering(cmd.Context(), cmd, cfg, &clusterOpts, source, texts)
}
