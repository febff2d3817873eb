package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"actionfigure/internal/infra"
	"actionfigure/internal/pipeline"
)

type stubKeys struct {
	openai, letzai string
	err            error
	calls          int
}

func (s *stubKeys) OpenAIAPIKey(ctx context.Context) (string, error) {
	s.calls++
	return s.openai, s.err
}

func (s *stubKeys) LetzAIAPIKey(ctx context.Context) (string, error) {
	s.calls++
	return s.letzai, s.err
}

func testConfig() *infra.Config {
	return &infra.Config{
		OpenAIModel:       "gpt-4o-mini",
		OpenAIBaseURL:     "http://127.0.0.1:1",
		LetzAIBaseURL:     "http://127.0.0.1:1",
		AnalysisTimeout:   time.Second,
		AnalysisSilence:   time.Second,
		GenerationTimeout: time.Second,
		PollInterval:      5 * time.Second,
		PollTimeout:       time.Second,
	}
}

func TestResolveKeysPrefersEnvironment(t *testing.T) {
	cfg := testConfig()
	cfg.OpenAIAPIKey = " env-openai "
	store := &stubKeys{openai: "db-openai", letzai: "db-letz"}

	keys := ResolveKeys(context.Background(), cfg, store, nil)

	if keys.OpenAI != "env-openai" {
		t.Fatalf("OpenAI = %q", keys.OpenAI)
	}
	if keys.LetzAI != "db-letz" {
		t.Fatalf("LetzAI = %q", keys.LetzAI)
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.calls)
	}
}

func TestResolveKeysStoreErrorIsNotFatal(t *testing.T) {
	store := &stubKeys{err: errors.New("db down")}
	keys := ResolveKeys(context.Background(), testConfig(), store, infra.DiscardLogger())
	if keys.OpenAI != "" || keys.LetzAI != "" {
		t.Fatalf("unexpected keys %+v", keys)
	}
}

func TestBuildWithVocabularyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traits.yaml")
	if err := os.WriteFile(path, []byte("flag_prefix: Wears\ntraits:\n  - Gender\n  - Wears Cape\n"), 0o644); err != nil {
		t.Fatalf("write vocabulary: %v", err)
	}
	cfg := testConfig()
	cfg.TraitVocabularyPath = path

	c, err := Build(cfg, Keys{}, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if got := c.Vocabulary.Names(); len(got) != 2 || !c.Vocabulary.IsFlag("Wears Cape") {
		t.Fatalf("unexpected vocabulary %v", got)
	}
	if c.Extractor.Vocabulary() != c.Vocabulary {
		t.Fatal("extractor does not share the vocabulary")
	}
	if c.Vision.HasCredentials() || c.LetzAI.HasCredentials() {
		t.Fatal("credentials should be empty")
	}

	o, err := c.NewOrchestrator("s1")
	if err != nil {
		t.Fatalf("NewOrchestrator error: %v", err)
	}
	defer o.Close()
	if o.ID() != "s1" || o.State().Phase != pipeline.PhaseIdle {
		t.Fatalf("unexpected orchestrator %s %s", o.ID(), o.State().Phase)
	}
}

func TestBuildWithMemeCatalog(t *testing.T) {
	cfg := testConfig()
	c, err := Build(cfg, Keys{}, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if len(c.Memes.Styles()) != 10 {
		t.Fatalf("default catalog expected, got %d styles", len(c.Memes.Styles()))
	}

	cfg.MemeCatalogPath = filepath.Join(t.TempDir(), "memes.yaml")
	if err := os.WriteFile(cfg.MemeCatalogPath, []byte("topics:\n  - {id: doge, model: \"@meme_doge\"}\nstyles:\n  - {id: noir}\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	c, err = Build(cfg, Keys{}, nil)
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	if topics := c.Memes.Topics(); len(topics) != 1 || topics[0].Model != "@meme_doge" {
		t.Fatalf("unexpected topics %+v", topics)
	}

	cfg.MemeCatalogPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Build(cfg, Keys{}, nil); err == nil {
		t.Fatal("expected error for missing catalog file")
	}
}

func TestBuildRejectsMissingVocabulary(t *testing.T) {
	cfg := testConfig()
	cfg.TraitVocabularyPath = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Build(cfg, Keys{}, nil); err == nil {
		t.Fatal("expected error for missing vocabulary file")
	}
}
