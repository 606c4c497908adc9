package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jacklau/clusterkit/internal/cluster"
	"github.com/jacklau/clusterkit/internal/config"
	"github.com/jacklau/clusterkit/internal/features"
	"github.com/jacklau/clusterkit/internal/github"
	"github.com/jacklau/clusterkit/internal/label"
	"github.com/jacklau/clusterkit/internal/ngram"
	"github.com/jacklau/clusterkit/internal/notify"
	"github.com/jacklau/clusterkit/internal/pipeline"
	"github.com/jacklau/clusterkit/internal/provider"
	"github.com/jacklau/clusterkit/internal/retry"
	"github.com/jacklau/clusterkit/internal/store"

	gogithub "github.com/google/go-github/v60/github"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "clusterkit",
	Short: "Group similar short texts with hierarchical clustering",
	Long: `Clusterkit groups similar short texts (issue titles, support tickets,
log lines) with agglomerative hierarchical clustering over character n-gram
or embedding vectors. Results can be labeled with an LLM, saved to a local
history and posted to Slack/Discord.`,
	SilenceUsage: true,
}

// Execute runs the root command. Cancelling ctx stops a running job.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("config file (default %s)", config.DefaultPath))
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func setupLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

func loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(cfgFile)
}

// openStore opens the SQLite store, creating its directory if needed.
func openStore(path string) (*store.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return db, nil
}

// clusterFlags are the flags shared by the commands that run a clustering job.
type clusterFlags struct {
	linkage     string
	threshold   float64
	ngram       int
	padding     string
	idf         bool
	noStopWords bool
	features    string
	matrix      bool
	label       bool
	save        bool
	notify      string
	workers     int
}

func (f *clusterFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.linkage, "linkage", config.DefaultLinkage, "linkage: "+strings.Join(cluster.LinkageNames(), ", "))
	fl.Float64Var(&f.threshold, "threshold", config.DefaultThreshold, "maximum cosine distance for a merge, in [0, 2]")
	fl.IntVar(&f.ngram, "ngram", config.DefaultNGramSize, "character n-gram size")
	fl.StringVar(&f.padding, "padding", config.DefaultPadding, "word boundary padding: none, start, end or both")
	fl.BoolVar(&f.idf, "idf", false, "weight n-grams by inverse document frequency")
	fl.BoolVar(&f.noStopWords, "no-stop-words", false, "keep English stop words")
	fl.StringVar(&f.features, "features", config.DefaultFeatures, "feature source: ngram or embedding")
	fl.BoolVar(&f.matrix, "matrix", false, "print the pairwise similarity matrix")
	fl.BoolVar(&f.label, "label", false, "name clusters with the configured LLM")
	fl.BoolVar(&f.save, "save", false, "save the run to the history store")
	fl.StringVar(&f.notify, "notify", "", "post results: slack, discord or both (bare flag uses config)")
	fl.Lookup("notify").NoOptDefVal = "auto"
	fl.IntVar(&f.workers, "workers", config.DefaultWorkers, "concurrent distance and provider workers")
}

// apply copies explicitly set flags over the config values.
func (f *clusterFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	c := &cfg.Clustering
	if fl.Changed("linkage") {
		c.Linkage = f.linkage
	}
	if fl.Changed("threshold") {
		c.Threshold = &f.threshold
	}
	if fl.Changed("ngram") {
		c.NGramSize = f.ngram
	}
	if fl.Changed("padding") {
		c.Padding = f.padding
	}
	if fl.Changed("idf") {
		c.IDF = f.idf
	}
	if fl.Changed("no-stop-words") {
		keep := !f.noStopWords
		c.StopWords = &keep
	}
	if fl.Changed("workers") {
		c.Workers = f.workers
	}
	if fl.Changed("features") {
		cfg.Features = f.features
	}
}

// components holds initialized components for one clustering command.
type components struct {
	Config   *config.Config
	Store    *store.DB
	Source   features.Source
	Pipeline *pipeline.Pipeline
	Logger   *slog.Logger
}

// Close releases the store, if one was opened.
func (c *components) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}

// initComponents builds the feature source, labeler, notifier and pipeline
// for a clustering run. The store is opened only when a run is saved or
// embeddings are cached.
func initComponents(cmd *cobra.Command, cfg *config.Config, f *clusterFlags, logger *slog.Logger) (*components, error) {
	c := &components{Config: cfg, Logger: logger}
	cc := cfg.Clustering

	if f.save || cfg.Features == "embedding" {
		db, err := openStore(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		c.Store = db
	}

	src, err := createSource(cmd, cfg, c.Store, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Source = src

	deps := pipeline.PipelineDeps{
		Features:  src,
		Linkage:   cc.Linkage,
		Threshold: cc.DistanceThreshold(),
		Workers:   cc.Workers,
		Logger:    logger,
	}
	if c.Store != nil {
		deps.Store = c.Store
	}

	if f.label {
		completer, err := provider.NewCompleter(cfg.Providers.LLM.Type, cfg.Providers.LLM.Model, cfg.Providers.LLM.APIKey, cfg.Providers.LLM.URL)
		if err != nil {
			c.Close()
			return nil, err
		}
		if completer == nil {
			c.Close()
			return nil, fmt.Errorf("--label requires providers.llm in config")
		}
		timeout, err := cfg.Defaults.RequestTimeout()
		if err != nil {
			c.Close()
			return nil, err
		}
		deps.Labeler = label.NewLabeler(completer, timeout, 0)
	}

	if f.notify != "" {
		notifyType := f.notify
		if notifyType == "auto" {
			notifyType = ""
		}
		n, err := createNotifier(cfg, notifyType)
		if err != nil {
			c.Close()
			return nil, err
		}
		if n == nil {
			c.Close()
			return nil, fmt.Errorf("--notify requires notify.slack_webhook or notify.discord_webhook in config")
		}
		deps.Notifier = n
	}

	p, err := pipeline.New(deps)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Pipeline = p
	return c, nil
}

// createSource builds the configured feature source.
func createSource(cmd *cobra.Command, cfg *config.Config, db *store.DB, logger *slog.Logger) (features.Source, error) {
	cc := cfg.Clustering
	switch cfg.Features {
	case "ngram":
		padding, err := ngram.ParsePadding(cc.Padding)
		if err != nil {
			return nil, err
		}
		return features.NGramSource{
			Size:      cc.NGramSize,
			Padding:   padding,
			StopWords: cc.RemoveStopWords(),
			IDF:       cc.IDF,
		}, nil
	case "embedding":
		ec := cfg.Providers.Embedding
		embedder, err := provider.NewEmbedder(ec.Type, ec.Model, ec.APIKey, ec.URL)
		if err != nil {
			return nil, err
		}
		if embedder == nil {
			return nil, fmt.Errorf("embedding features require providers.embedding in config")
		}
		opts := []features.EmbeddingOption{
			features.WithWorkers(cc.Workers),
			features.WithRetry(retry.Policy{MaxAttempts: cfg.Defaults.MaxAttempts}),
			features.WithLogger(logger),
		}
		if db != nil {
			opts = append(opts, features.WithCache(db))
		}
		if !verbose {
			bar := newProgressBar(0, "Embedding", cmd.ErrOrStderr())
			opts = append(opts, features.WithProgress(bar.Set))
		}
		return features.NewEmbeddingSource(embedder, ec.Model, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported features: %q", cfg.Features)
	}
}

// createNotifier builds a Notifier from config and flag override.
func createNotifier(cfg *config.Config, notifyFlag string) (notify.Notifier, error) {
	notifyType := notifyFlag
	if notifyType == "" {
		// Determine from config
		hasSlack := cfg.Notify.SlackWebhook != ""
		hasDiscord := cfg.Notify.DiscordWebhook != ""
		switch {
		case hasSlack && hasDiscord:
			notifyType = "both"
		case hasSlack:
			notifyType = "slack"
		case hasDiscord:
			notifyType = "discord"
		default:
			return nil, nil // no notification configured
		}
	}

	return notify.NewNotifier(notifyType, cfg.Notify.SlackWebhook, cfg.Notify.DiscordWebhook)
}

// createGitHubClient builds a GitHub client for the configured auth mode.
func createGitHubClient(cfg *config.Config) (*gogithub.Client, error) {
	gh := cfg.GitHub
	auth := github.Auth{
		Mode:           gh.Auth,
		Token:          gh.Token,
		PrivateKey:     []byte(gh.PrivateKey),
		PrivateKeyPath: config.ExpandPath(gh.PrivateKeyPath),
	}
	if gh.Auth == "app" {
		appID, err := strconv.ParseInt(gh.AppID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing app_id: %w", err)
		}
		installID, err := strconv.ParseInt(gh.InstallationID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing installation_id: %w", err)
		}
		auth.AppID, auth.InstallationID = appID, installID
	}
	client, err := github.NewClient(auth)
	if err != nil {
		return nil, fmt.Errorf("creating GitHub client: %w", err)
	}
	return client, nil
}

// runClustering runs the pipeline for texts and prints the report.
func runClustering(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f *clusterFlags, source string, texts []string) error {
	logger := setupLogger()
	f.apply(cmd, cfg)

	c, err := initComponents(cmd, cfg, f, logger)
	if err != nil {
		return fmt.Errorf("initializing components: %w", err)
	}
	defer c.Close()

	req := pipeline.Request{
		Source: source,
		Texts:  texts,
		Save:   f.save,
		Notify: f.notify != "",
	}
	var matrixTexts []string
	var matrixVectors [][]float64
	if f.matrix {
		req.OnFeatures = func(texts []string, vectors [][]float64) {
			matrixTexts, matrixVectors = texts, vectors
		}
	}

	r, err := c.Pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := r.Write(out, cfg.Defaults.MaxMembersShown); err != nil {
		return err
	}
	if f.matrix {
		fmt.Fprintln(out)
		if err := printMatrix(out, matrixTexts, matrixVectors); err != nil {
			return fmt.Errorf("printing similarity matrix: %w", err)
		}
	}
	return nil
}
