package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
)

// writeTestConfig creates a dataset and a config pointing at it inside a temp
// dir, and returns the config path.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	dataset := filepath.Join(dir, "dataset.txt")
	if err := os.WriteFile(dataset, []byte("The cat sat.\nThe cat ran!\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	config := DefaultConfig()
	config.Server.DatabasePath = filepath.Join(dir, "test.db")
	config.Server.DatasetPath = dataset
	config.Server.LogLevel = "error"
	config.Markov.Seed = 1
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "config.json")
	if err = os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runApp runs the CLI with the given arguments and returns what it wrote to
// its standard output.
func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runAppOutputs(t, stdin, args...)
	return out, err
}

// runAppOutputs is runApp that also returns the error stream, where the
// logger writes.
func runAppOutputs(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Reader = strings.NewReader(stdin)
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(context.Context, *cli.Command, error) {}

	err := app.Run(context.Background(), append([]string{"nextword"}, args...))
	return out.String(), errOut.String(), err
}

func TestTrainCommand(t *testing.T) {
	config := writeTestConfig(t)

	out, err := runApp(t, "", "--config", config, "train", "--epochs", "2", "--save", "default")
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	for _, want := range []string{"Epoch 1/2: loss", "Epoch 2/2: loss", "Model: 6 tokens, 3 words, 4 transitions", `Saved model "default"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = runApp(t, "", "--config", config, "models")
	if err != nil {
		t.Fatalf("models failed: %v", err)
	}
	if !strings.Contains(out, "default") || !strings.Contains(out, "1 model(s)") {
		t.Errorf("expected the saved model to be listed, got:\n%s", out)
	}
}

func TestTrainCommandPrune(t *testing.T) {
	config := writeTestConfig(t)

	// Only the->cat was seen twice.
	out, err := runApp(t, "", "--config", config, "train", "--prune", "1", "--save", "default")
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if !strings.Contains(out, "Model: 6 tokens, 1 words, 1 transitions") {
		t.Errorf("expected the pruned model to be reported, got:\n%s", out)
	}

	out, err = runApp(t, "", "--config", config, "generate", "--model", "default", "--prompt", "the")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(out, "Generated: The cat\n") {
		t.Errorf("expected generation from the pruned model, got:\n%s", out)
	}
}

func TestGenerateCommand(t *testing.T) {
	config := writeTestConfig(t)

	out, err := runApp(t, "", "--config", config, "generate", "--prompt", "the")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	for _, want := range []string{"Step 1: the cat\n", "Step 2: the cat ran\n", "Generated: The cat ran\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = runApp(t, "", "--config", config, "generate", "--prompt", "the", "-n", "1")
	if err != nil {
		t.Fatalf("generate with max words failed: %v", err)
	}
	if !strings.Contains(out, "Generated: The cat\n") {
		t.Errorf("expected one generated word, got:\n%s", out)
	}
}

func TestGenerateCommandReadsPrompt(t *testing.T) {
	config := writeTestConfig(t)

	out, err := runApp(t, "\n?!\ncat\n", "--config", config, "generate")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if n := strings.Count(out, "The prompt has no words, please try again."); n != 2 {
		t.Errorf("expected 2 retries, got %d in:\n%s", n, out)
	}
	// cat -> ran and sat tie at 1; ran sorts first and is a dead end.
	if !strings.Contains(out, "Generated: Cat ran\n") {
		t.Errorf("unexpected generation output:\n%s", out)
	}

	if _, err = runApp(t, "", "--config", config, "generate"); err == nil {
		t.Error("expected an error when no prompt can be read")
	}
}

func TestGenerateCommandMissingDataset(t *testing.T) {
	config := writeTestConfig(t)

	_, err := runApp(t, "", "--config", config, "generate", "--prompt", "the", "--dataset", filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected an error for a missing dataset")
	}
	if !strings.Contains(err.Error(), "dataset unavailable") {
		t.Errorf("expected a dataset error, got %v", err)
	}
}

func TestExportImportCommands(t *testing.T) {
	config := writeTestConfig(t)
	if _, err := runApp(t, "", "--config", config, "train", "--save", "default"); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	exported := filepath.Join(t.TempDir(), "default.json")
	if _, err := runApp(t, "", "--config", config, "export", "--out", exported); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("expected the export file to exist: %v", err)
	}

	out, err := runApp(t, "", "--config", config, "import", "--in", exported)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, `Imported model "default"`) || !strings.Contains(out, "12 tokens") {
		t.Errorf("unexpected import output: %s", out)
	}

	// The merged model has doubled counts but the same greedy path.
	out, err = runApp(t, "", "--config", config, "generate", "--model", "default", "--prompt", "the")
	if err != nil {
		t.Fatalf("generate from the stored model failed: %v", err)
	}
	if !strings.Contains(out, "Generated: The cat ran\n") {
		t.Errorf("unexpected generation output:\n%s", out)
	}
}

func TestLogsGoToErrWriter(t *testing.T) {
	config := writeTestConfig(t)
	if _, err := runApp(t, "", "--config", config, "train", "--save", "default"); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	out, errOut, err := runAppOutputs(t, "", "--config", config, "--log-level", "debug", "export")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	var exported struct {
		Name string `json:"name"`
	}
	if err = json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("expected stdout to hold only the exported JSON, got error %v for:\n%s", err, out)
	}
	if exported.Name != "default" {
		t.Errorf("expected the default model to be exported, got %q", exported.Name)
	}
	if !strings.Contains(errOut, "level=") {
		t.Errorf("expected log records on the error writer, got:\n%s", errOut)
	}
}
