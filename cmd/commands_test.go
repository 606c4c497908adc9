package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default between executions of the
// shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// executeCommand runs the root command with args and stdin and returns its
// standard output.
func executeCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := executeCommandStderr(t, stdin, args...)
	return out, err
}

// executeCommandStderr is executeCommand that also returns what the command
// wrote to its error stream.
func executeCommandStderr(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// writeConfig writes a config file with a store in a temp dir plus extra YAML.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf("store:\n  path: %s\n%s", filepath.Join(dir, "data", "clusterkit.db"), extra)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const loginTexts = "login fails\nlogin failed\n\ndark mode\n"

func TestClusterCommand_Stdin(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := executeCommand(t, loginTexts, "cluster", "--config", cfg)
	if err != nil {
		t.Fatalf("cluster failed: %v", err)
	}
	if !strings.Contains(out, "3 texts in 2 groups (1 clusters, 1 singletons), average linkage, threshold 0.30") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "[1] login fails (2)\n  - login fails\n  - login failed\n") {
		t.Errorf("expected the login group first:\n%s", out)
	}
}

func TestClusterCommand_TextFlagsAndMatrix(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := executeCommand(t, "", "cluster", "--config", cfg,
		"--text", "login fails", "--text", "dark mode",
		"--linkage", "single", "--threshold", "0.1", "--matrix")
	if err != nil {
		t.Fatalf("cluster failed: %v", err)
	}
	if !strings.Contains(out, "2 texts in 2 groups") || !strings.Contains(out, "single linkage, threshold 0.10") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, "1.000") {
		t.Errorf("expected the matrix diagonal:\n%s", out)
	}
}

func TestClusterCommand_File(t *testing.T) {
	cfg := writeConfig(t, "")
	input := filepath.Join(t.TempDir(), "titles.txt")
	if err := os.WriteFile(input, []byte(loginTexts), 0o600); err != nil {
		t.Fatalf("writing input: %v", err)
	}

	out, err := executeCommand(t, "", "cluster", "--config", cfg, input)
	if err != nil {
		t.Fatalf("cluster failed: %v", err)
	}
	if !strings.HasPrefix(out, "Source: "+input+"\n") {
		t.Errorf("expected source header:\n%s", out)
	}
}

func TestClusterCommand_Errors(t *testing.T) {
	cfg := writeConfig(t, "")

	tests := []struct {
		name  string
		stdin string
		args  []string
	}{
		{"no texts", "\n  \n", nil},
		{"unknown linkage", loginTexts, []string{"--linkage", "ward"}},
		{"threshold out of range", loginTexts, []string{"--threshold", "3"}},
		{"NaN threshold", loginTexts, []string{"--threshold", "NaN"}},
		{"bad padding", loginTexts, []string{"--padding", "middle"}},
		{"label without llm", loginTexts, []string{"--label"}},
		{"notify without webhooks", loginTexts, []string{"--notify"}},
		{"missing file", "", []string{"/nonexistent/titles.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"cluster", "--config", cfg}, tt.args...)
			if _, err := executeCommand(t, tt.stdin, args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestClusterCommand_MissingExplicitConfig(t *testing.T) {
	_, err := executeCommand(t, loginTexts, "cluster", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing --config file")
	}
}

func TestSaveHistoryShowDelete(t *testing.T) {
	cfg := writeConfig(t, "")

	if _, err := executeCommand(t, loginTexts, "cluster", "--config", cfg, "--save"); err != nil {
		t.Fatalf("cluster --save failed: %v", err)
	}

	out, err := executeCommand(t, "", "history", "--config", cfg)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Runs: 1  Groups: 2") {
		t.Errorf("unexpected history output:\n%s", out)
	}

	out, err = executeCommand(t, "", "show", "--config", cfg, "1")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.HasPrefix(out, "Run #1\n") || !strings.Contains(out, "login failed") {
		t.Errorf("unexpected show output:\n%s", out)
	}

	out, err = executeCommand(t, "", "show", "--config", cfg, "--delete", "1")
	if err != nil {
		t.Fatalf("show --delete failed: %v", err)
	}
	if !strings.Contains(out, "Deleted run #1.") {
		t.Errorf("unexpected delete output: %q", out)
	}

	if _, err := executeCommand(t, "", "show", "--config", cfg, "1"); err == nil {
		t.Error("expected error for deleted run")
	}
}

func TestHistoryEmpty(t *testing.T) {
	out, err := executeCommand(t, "", "history", "--config", writeConfig(t, ""))
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "No saved runs yet.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestShowInvalidID(t *testing.T) {
	if _, err := executeCommand(t, "", "show", "--config", writeConfig(t, ""), "abc"); err == nil {
		t.Error("expected error for non-numeric run id")
	}
}

func TestClusterCommand_EmbeddingFeatures(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		requests.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)

		embeddings := make([][]float64, len(req.Input))
		for i, text := range req.Input {
			if strings.HasPrefix(text, "login") {
				embeddings[i] = []float64{1, 0.05}
			} else {
				embeddings[i] = []float64{0, 1}
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	defer srv.Close()

	cfg := writeConfig(t, fmt.Sprintf(`
features: embedding
providers:
  embedding:
    type: ollama
    model: test-embed
    url: %s
`, srv.URL))

	out, err := executeCommand(t, loginTexts, "cluster", "--config", cfg)
	if err != nil {
		t.Fatalf("cluster failed: %v", err)
	}
	if !strings.Contains(out, "3 texts in 2 groups") {
		t.Errorf("unexpected output:\n%s", out)
	}
	first := requests.Load()
	if first == 0 {
		t.Fatal("expected the embedding server to be called")
	}

	// A second run is served from the embedding cache.
	if _, err := executeCommand(t, loginTexts, "cluster", "--config", cfg); err != nil {
		t.Fatalf("second cluster failed: %v", err)
	}
	if requests.Load() != first {
		t.Errorf("expected cached embeddings, got %d more requests", requests.Load()-first)
	}
}

func TestClusterCommand_MatrixReusesEmbeddings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		embeddings := make([][]float64, len(req.Input))
		for i := range req.Input {
			embeddings[i] = []float64{1, float64(i)}
		}
		json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	defer srv.Close()

	cfg := writeConfig(t, fmt.Sprintf(`
features: embedding
providers:
  embedding:
    type: ollama
    model: test-embed
    url: %s
`, srv.URL))

	out, stderr, err := executeCommandStderr(t, loginTexts, "cluster", "--config", cfg, "--matrix")
	if err != nil {
		t.Fatalf("cluster --matrix failed: %v", err)
	}
	if !strings.Contains(out, "1.000") {
		t.Errorf("expected the matrix in the output:\n%s", out)
	}
	if n := strings.Count(stderr, "3/3\n"); n != 1 {
		t.Errorf("expected texts embedded once, progress finished %d times:\n%s", n, stderr)
	}
}

func TestClusterCommand_Notify(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		body = buf.Bytes()
	}))
	defer srv.Close()

	cfg := writeConfig(t, fmt.Sprintf("notify:\n  slack_webhook: %s\n", srv.URL))

	if _, err := executeCommand(t, loginTexts, "cluster", "--config", cfg, "--notify"); err != nil {
		t.Fatalf("cluster --notify failed: %v", err)
	}
	if !strings.Contains(string(body), "login fails") {
		t.Errorf("expected the report in the webhook payload, got %s", body)
	}
}

func TestIssuesCommand_InvalidRepo(t *testing.T) {
	if _, err := executeCommand(t, "", "issues", "--config", writeConfig(t, ""), "not-a-repo"); err == nil {
		t.Error("expected error for invalid repo argument")
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"cluster": false, "issues": false, "history": false, "show": false, "init": false, "version": false}
	for _, c := range rootCmd.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s command not registered", name)
		}
	}
}
