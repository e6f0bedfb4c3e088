package markov

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSaveAndLoadModel(t *testing.T) {
	ctx, s, info, m := setupTestDBWithModel(t)

	if info.Name != "test_model" || info.TokenCount != 11 || info.Id == 0 {
		t.Errorf("got unexpected model info: %+v", info)
	}

	loaded, err := s.LoadModel(ctx, info)
	if err != nil {
		t.Fatalf("LoadModel() failed: %v", err)
	}
	if diff := cmp.Diff(m.Counts(), loaded.Counts()); diff != "" {
		t.Errorf("loaded model mismatch (-want +got):\n%s", diff)
	}

	// Generation from the stored model matches generation from the original.
	want, _ := Generate("one", m)
	got, _ := Generate("one", loaded)
	if got != want {
		t.Errorf("Generate() from loaded model = %q, want %q", got, want)
	}
}

func TestSaveModelReplaces(t *testing.T) {
	ctx, s, info, _ := setupTestDBWithModel(t)

	replacement := BuildSequential([]string{"x", "y"})
	saved, err := s.SaveModel(ctx, info.Name, replacement, 2)
	if err != nil {
		t.Fatalf("SaveModel() failed: %v", err)
	}
	if saved.Id != info.Id {
		t.Errorf("saving under the same name should keep id %d, got %d", info.Id, saved.Id)
	}

	loaded, err := s.LoadModel(ctx, saved)
	if err != nil {
		t.Fatalf("LoadModel() failed: %v", err)
	}
	if !loaded.Equal(replacement) {
		t.Errorf("expected the old chains to be replaced, got %v", loaded.Counts())
	}

	reloaded, _ := s.GetModelInfo(ctx, info.Name)
	if reloaded.TokenCount != 2 {
		t.Errorf("expected token count 2, got %d", reloaded.TokenCount)
	}
}

func TestGetModelInfo(t *testing.T) {
	ctx, s, info, _ := setupTestDBWithModel(t)

	got, err := s.GetModelInfo(ctx, "test_model")
	if err != nil {
		t.Fatalf("GetModelInfo: expected no error, got %v", err)
	}
	if got != info {
		t.Errorf("GetModelInfo() = %+v, want %+v", got, info)
	}

	_, err = s.GetModelInfo(ctx, "nonexistent_model")
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound for nonexistent model, got %v", err)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows for nonexistent model, got %v", err)
	}
}

func TestGetModelInfos(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	_, _ = s.SaveModel(ctx, "test_model", BuildSequential([]string{"a", "b"}), 2)
	_, _ = s.SaveModel(ctx, "another_model", BuildSequential([]string{"c", "d"}), 2)

	models, err := s.GetModelInfos(ctx)
	if err != nil {
		t.Fatalf("GetModelInfos failed: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("expected 2 models, got %d", len(models))
	}
	if _, ok := models["test_model"]; !ok {
		t.Error("expected to find 'test_model'")
	}
	if _, ok := models["another_model"]; !ok {
		t.Error("expected to find 'another_model'")
	}
}

func TestGetNextTokens(t *testing.T) {
	ctx, s, info, _ := setupTestDBWithModel(t)

	tokens, total, err := s.GetNextTokens(ctx, info, "fish")
	if err != nil {
		t.Fatalf("GetNextTokens failed: %v", err)
	}
	expected := []ChainToken{
		{Text: "blue", Freq: 1},
		{Text: "one", Freq: 1},
		{Text: "red", Freq: 1},
		{Text: "swims", Freq: 1},
		{Text: "two", Freq: 1},
	}
	if diff := cmp.Diff(expected, tokens); diff != "" {
		t.Errorf("GetNextTokens(fish) mismatch (-want +got):\n%s", diff)
	}
	if total != 5 {
		t.Errorf("expected total frequency 5, got %d", total)
	}

	tokens, total, err = s.GetNextTokens(ctx, info, "swims")
	if err != nil || tokens != nil || total != 0 {
		t.Errorf("GetNextTokens(swims) = (%v, %d, %v), want (nil, 0, nil)", tokens, total, err)
	}
}

func TestRemoveModel(t *testing.T) {
	db, s := setupTestDB(t)
	ctx := context.Background()

	m1, _ := s.SaveModel(ctx, "to_delete", BuildSequential(strings.Fields("delete this data")), 3)
	m2, _ := s.SaveModel(ctx, "to_keep", BuildSequential(strings.Fields("keep this data")), 3)

	if err := s.RemoveModel(ctx, m1); err != nil {
		t.Fatalf("RemoveModel failed: %v", err)
	}

	// Verify model m1 is gone
	_, err := s.GetModelInfo(ctx, m1.Name)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound for deleted model, got %v", err)
	}

	// Verify chains for m1 are gone
	var count int
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_chains WHERE model_id = ?", m1.Id).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 chains for deleted model, found %d", count)
	}

	// Verify model m2 and its chains still exist
	_ = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM markov_chains WHERE model_id = ?", m2.Id).Scan(&count)
	if count != 2 {
		t.Errorf("expected 2 chains for kept model, found %d", count)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx, s, info, m := setupTestDBWithModel(t)

	// 1. Export the model to an in-memory buffer
	var buf bytes.Buffer
	if err := s.ExportModel(ctx, info, &buf); err != nil {
		t.Fatalf("ExportModel failed: %v", err)
	}

	// 2. Set up a completely new, empty database
	_, s2 := setupTestDB(t)

	// 3. Import from the buffer into the new DB
	imported, err := s2.ImportModel(ctx, &buf)
	if err != nil {
		t.Fatalf("ImportModel failed: %v", err)
	}
	if imported.Name != info.Name || imported.TokenCount != info.TokenCount {
		t.Errorf("unexpected imported model info: %+v", imported)
	}

	// 4. Verify the imported data
	loaded, err := s2.LoadModel(ctx, imported)
	if err != nil {
		t.Fatalf("LoadModel from imported model failed: %v", err)
	}
	if diff := cmp.Diff(m.Counts(), loaded.Counts()); diff != "" {
		t.Errorf("imported model mismatch (-want +got):\n%s", diff)
	}

	output, err := Generate("one", loaded)
	if err != nil {
		t.Fatalf("Generate from imported model failed: %v", err)
	}
	if expected := "One fish blue"; output != expected {
		t.Errorf("Generate() from imported model got = %q, want %q", output, expected)
	}
}

func TestImportMergesByAddition(t *testing.T) {
	ctx, s, info, m := setupTestDBWithModel(t)

	var buf bytes.Buffer
	if err := s.ExportModel(ctx, info, &buf); err != nil {
		t.Fatalf("ExportModel failed: %v", err)
	}

	// Importing a model into itself doubles every count.
	merged, err := s.ImportModel(ctx, &buf)
	if err != nil {
		t.Fatalf("ImportModel failed: %v", err)
	}
	if merged.Id != info.Id {
		t.Errorf("expected the import to merge into model %d, got %d", info.Id, merged.Id)
	}
	if merged.TokenCount != 2*info.TokenCount {
		t.Errorf("expected token count %d, got %d", 2*info.TokenCount, merged.TokenCount)
	}

	loaded, err := s.LoadModel(ctx, merged)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	expected := NewModel()
	expected.Merge(m)
	expected.Merge(m)
	if diff := cmp.Diff(expected.Counts(), loaded.Counts()); diff != "" {
		t.Errorf("merged model mismatch (-want +got):\n%s", diff)
	}
}

func TestImportRejectsInvalidInput(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	testCases := map[string]string{
		"Malformed JSON": `{"name": "broken"`,
		"Missing name":   `{"vocabulary": {}, "chains": []}`,
		"Unknown token":  `{"name": "bad", "vocabulary": {"a": 1}, "chains": [{"token_id": 1, "next_token_id": 2, "frequency": 1}]}`,
	}
	for name, input := range testCases {
		t.Run(name, func(t *testing.T) {
			if _, err := s.ImportModel(ctx, strings.NewReader(input)); err == nil {
				t.Error("expected an error, got nil")
			}
		})
	}

	// A failed import leaves nothing behind.
	if _, err := s.GetModelInfo(ctx, "bad"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected the failed import to be rolled back, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx, s, info, m := setupTestDBWithModel(t)
	_, _ = s.SaveModel(ctx, "another_model", BuildSequential([]string{"fish", "tank"}), 2)

	expected := ModelStats{Words: 5, Transitions: 9, TotalFrequency: 10}
	if diff := cmp.Diff(expected, m.Stats()); diff != "" {
		t.Errorf("Model.Stats() mismatch (-want +got):\n%s", diff)
	}

	stored, err := s.GetModelStats(ctx, info)
	if err != nil {
		t.Fatalf("GetModelStats failed: %v", err)
	}
	if diff := cmp.Diff(expected, stored); diff != "" {
		t.Errorf("GetModelStats() mismatch (-want +got):\n%s", diff)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if len(stats.Models) != 2 || stats.Models[0].Name != "another_model" || stats.Models[1].Name != "test_model" {
		t.Errorf("expected models sorted by name, got %+v", stats.Models)
	}
	if stats.VocabSize != 7 {
		t.Errorf("expected a vocabulary of 7 words, got %d", stats.VocabSize)
	}
	if stats.Stats[info.Id] != expected {
		t.Errorf("unexpected stats for %s: %+v", info.Name, stats.Stats[info.Id])
	}
}

func TestSetupSchemaIsIdempotent(t *testing.T) {
	db, _ := setupTestDB(t)
	if err := SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema() failed: %v", err)
	}
}

func BenchmarkSaveModel(b *testing.B) {
	dbFile := b.TempDir() + "/bench.db"
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		b.Fatalf("failed to open database: %v", err)
	}
	defer func(db *sql.DB) {
		_ = db.Close()
	}(db)
	if err := SetupSchema(db); err != nil {
		b.Fatalf("failed to set up schema: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		b.Fatalf("NewStore() error = %v", err)
	}
	defer s.Close()

	tokens := NewDefaultTokenizer().Tokenize(createBenchmarkCorpus())
	m := BuildSequential(tokens)
	ctx := context.Background()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := s.SaveModel(ctx, "bench", m, len(tokens)); err != nil {
			b.Fatalf("SaveModel() failed: %v", err)
		}
	}
}
