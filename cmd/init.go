package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacklau/clusterkit/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactive setup for clusterkit configuration",
	Long:  `Creates a configuration file with guided prompts.`,
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

// initAnswers are the values gathered by the init prompts.
type initAnswers struct {
	Features      string
	Linkage       string
	Threshold     string
	EmbedProvider string
	LLMProvider   string
	GitHubAuth    string
	SlackURL      string
	DiscordURL    string
}

// prompter reads one answer per line.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// ask prints question and returns the trimmed answer, or def when it is blank.
func (p *prompter) ask(question, def string) string {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", question)
	}
	answer, _ := p.in.ReadString('\n')
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def
	}
	return answer
}

func runInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: out}

	fmt.Fprintln(out, "Welcome to clusterkit setup!")
	fmt.Fprintln(out, "This will create a configuration file for you.")
	fmt.Fprintln(out)

	configPath := cfgFile
	if configPath == "" {
		configPath = config.DefaultPath
	}
	configPath = config.ExpandPath(configPath)

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(out, "Config file already exists at %s\n", configPath)
		answer := strings.ToLower(p.ask("Overwrite? [y/N]", ""))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	a := initAnswers{
		Features:      p.ask("Features (ngram/embedding)", config.DefaultFeatures),
		Linkage:       p.ask("Linkage (single/complete/average)", config.DefaultLinkage),
		Threshold:     p.ask("Distance threshold (0-2)", fmt.Sprint(config.DefaultThreshold)),
		EmbedProvider: p.ask("Embedding provider (openai/ollama/none)", "none"),
		LLMProvider:   p.ask("LLM provider for labels (openai/ollama/anthropic/none)", "none"),
		GitHubAuth:    p.ask("GitHub auth (token/app/none)", "none"),
		SlackURL:      p.ask("Slack webhook URL (or press Enter to skip)", ""),
		DiscordURL:    p.ask("Discord webhook URL (or press Enter to skip)", ""),
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(buildConfigYAML(a)), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", configPath)
	fmt.Fprintln(out, "Edit the file to add API keys and customize settings.")
	return nil
}

func buildConfigYAML(a initAnswers) string {
	var b strings.Builder

	b.WriteString("# clusterkit configuration\n")
	b.WriteString("# See documentation for all available options.\n\n")

	b.WriteString("clustering:\n")
	fmt.Fprintf(&b, "  linkage: %s\n", a.Linkage)
	fmt.Fprintf(&b, "  threshold: %s\n", a.Threshold)
	fmt.Fprintf(&b, "  ngram_size: %d\n", config.DefaultNGramSize)
	fmt.Fprintf(&b, "  padding: %s\n", config.DefaultPadding)
	b.WriteString("  stop_words: true\n")
	b.WriteString("  idf: false\n")
	fmt.Fprintf(&b, "  workers: %d\n", config.DefaultWorkers)
	b.WriteString("\n")

	fmt.Fprintf(&b, "features: %s\n\n", a.Features)

	b.WriteString("providers:\n")
	if a.EmbedProvider != "none" {
		model, apiKey := embeddingProviderDefaults(a.EmbedProvider)
		b.WriteString("  embedding:\n")
		fmt.Fprintf(&b, "    type: %s\n", a.EmbedProvider)
		fmt.Fprintf(&b, "    model: %s\n", model)
		fmt.Fprintf(&b, "    api_key: %s\n", apiKey)
	} else {
		b.WriteString("  # embedding:\n  #   type: openai\n")
	}
	if a.LLMProvider != "none" {
		model, apiKey := llmProviderDefaults(a.LLMProvider)
		b.WriteString("  llm:\n")
		fmt.Fprintf(&b, "    type: %s\n", a.LLMProvider)
		fmt.Fprintf(&b, "    model: %s\n", model)
		fmt.Fprintf(&b, "    api_key: %s\n", apiKey)
	} else {
		b.WriteString("  # llm:\n  #   type: anthropic\n")
	}
	b.WriteString("\n")

	b.WriteString("github:\n")
	switch a.GitHubAuth {
	case "token":
		b.WriteString("  auth: token\n")
		b.WriteString("  token: ${GITHUB_TOKEN}\n")
	case "app":
		b.WriteString("  auth: app\n")
		b.WriteString("  app_id: YOUR_APP_ID\n")
		b.WriteString("  installation_id: YOUR_INSTALLATION_ID\n")
		b.WriteString("  private_key_path: /path/to/private-key.pem\n")
	default:
		b.WriteString("  # auth: token\n")
		b.WriteString("  # token: ${GITHUB_TOKEN}\n")
	}
	b.WriteString("\n")

	b.WriteString("notify:\n")
	if a.SlackURL != "" {
		fmt.Fprintf(&b, "  slack_webhook: %s\n", a.SlackURL)
	} else {
		b.WriteString("  # slack_webhook: https://hooks.slack.com/services/...\n")
	}
	if a.DiscordURL != "" {
		fmt.Fprintf(&b, "  discord_webhook: %s\n", a.DiscordURL)
	} else {
		b.WriteString("  # discord_webhook: https://discord.com/api/webhooks/...\n")
	}
	b.WriteString("\n")

	b.WriteString("defaults:\n")
	b.WriteString("  request_timeout: 30s\n")
	b.WriteString("  max_attempts: 3\n")
	b.WriteString("  max_members_shown: 10\n")
	b.WriteString("\n")

	b.WriteString("store:\n")
	b.WriteString("  path: ~/.clusterkit/clusterkit.db\n")

	return b.String()
}

// embeddingProviderDefaults returns the default model and api_key placeholder
// for the given embedding provider type.
func embeddingProviderDefaults(provider string) (model, apiKey string) {
	switch provider {
	case "ollama":
		return "nomic-embed-text", `""`
	default: // openai
		return "text-embedding-3-small", "${OPENAI_API_KEY}"
	}
}

// llmProviderDefaults returns the default model and api_key placeholder
// for the given LLM provider type.
func llmProviderDefaults(provider string) (model, apiKey string) {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-20250514", "${ANTHROPIC_API_KEY}"
	case "ollama":
		return "llama3.1:8b", `""`
	default: // openai
		return "gpt-4o-mini", "${OPENAI_API_KEY}"
	}
}
