// Package bootstrap assembles the pipeline components from configuration so
// the API server and the CLI share one wiring.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"actionfigure/internal/extractor"
	"actionfigure/internal/infra"
	"actionfigure/internal/meme"
	"actionfigure/internal/pipeline"
	"actionfigure/internal/providers/letzai"
	"actionfigure/internal/providers/vision"
	"actionfigure/internal/traits"
)

// KeySource supplies provider keys persisted outside the environment.
type KeySource interface {
	OpenAIAPIKey(ctx context.Context) (string, error)
	LetzAIAPIKey(ctx context.Context) (string, error)
}

// Keys holds the resolved provider credentials. Empty values are allowed; the
// providers report MissingCredentials on first use.
type Keys struct {
	OpenAI string
	LetzAI string
}

// ResolveKeys prefers the environment and falls back to the credential store
// for whichever key is missing. Store errors are logged, never fatal.
func ResolveKeys(ctx context.Context, cfg *infra.Config, store KeySource, logger *infra.Logger) Keys {
	keys := Keys{
		OpenAI: strings.TrimSpace(cfg.OpenAIAPIKey),
		LetzAI: strings.TrimSpace(cfg.LetzAIAPIKey),
	}
	if store == nil {
		return keys
	}
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	if keys.OpenAI == "" {
		if v, err := store.OpenAIAPIKey(ctx); err != nil {
			logger.Warn().Err(err).Msg("bootstrap: failed to load openai api key from store")
		} else {
			keys.OpenAI = v
		}
	}
	if keys.LetzAI == "" {
		if v, err := store.LetzAIAPIKey(ctx); err != nil {
			logger.Warn().Err(err).Msg("bootstrap: failed to load letzai api key from store")
		} else {
			keys.LetzAI = v
		}
	}
	return keys
}

// Components are the long-lived, stateless pipeline stages. Orchestrators are
// cheap and created per session from them.
type Components struct {
	Vocabulary *traits.Vocabulary
	Memes      *meme.Catalog
	Vision     *vision.Client
	Extractor  *extractor.Extractor
	LetzAI     *letzai.Client
	Poller     *pipeline.Poller

	pollInterval  time.Duration
	submitTimeout time.Duration
	logger        *infra.Logger
}

// Build constructs every stage from cfg.
func Build(cfg *infra.Config, keys Keys, logger *infra.Logger) (*Components, error) {
	if logger == nil {
		logger = infra.DiscardLogger()
	}

	vocab := traits.DefaultVocabulary()
	if cfg.TraitVocabularyPath != "" {
		loaded, err := traits.LoadVocabulary(cfg.TraitVocabularyPath)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		vocab = loaded
	}

	memes, err := meme.LoadCatalog(cfg.MemeCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	// Streaming responses outlive any fixed client timeout; the extractor's
	// context enforces the ceiling instead.
	visionClient := vision.NewClient(vision.Options{
		APIKey:       keys.OpenAI,
		BaseURL:      cfg.OpenAIBaseURL,
		Model:        cfg.OpenAIModel,
		Organization: cfg.OpenAIOrg,
		HTTPClient:   &http.Client{},
		Logger:       logger,
	})
	if !visionClient.HasCredentials() {
		logger.Warn().Str("model", visionClient.Model()).Msg("bootstrap: openai api key missing, analysis will fail")
	}

	ext, err := extractor.New(extractor.Options{
		Source:      visionClient,
		Vocabulary:  vocab,
		Instruction: cfg.AnalysisInstruction,
		Timeout:     cfg.AnalysisTimeout,
		Silence:     cfg.AnalysisSilence,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	letz := letzai.NewClient(letzai.Options{
		APIKey:  keys.LetzAI,
		BaseURL: cfg.LetzAIBaseURL,
		Params: letzai.Params{
			Width:         cfg.LetzAIWidth,
			Height:        cfg.LetzAIHeight,
			Quality:       cfg.LetzAIQuality,
			Creativity:    cfg.LetzAICreativity,
			HasWatermark:  cfg.LetzAIWatermark,
			SystemVersion: cfg.LetzAISystemVersion,
			Mode:          cfg.LetzAIMode,
		},
		HTTPClient:     &http.Client{Timeout: 60 * time.Second},
		Logger:         logger,
		RequestTimeout: cfg.GenerationTimeout,
	})
	if !letz.HasCredentials() {
		logger.Warn().Msg("bootstrap: letzai api key missing, generation will fail")
	}

	poller, err := pipeline.NewPoller(letz, cfg.PollTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &Components{
		Vocabulary:    vocab,
		Memes:         memes,
		Vision:        visionClient,
		Extractor:     ext,
		LetzAI:        letz,
		Poller:        poller,
		pollInterval:  cfg.PollInterval,
		submitTimeout: cfg.GenerationTimeout,
		logger:        logger,
	}, nil
}

// NewOrchestrator starts an Idle orchestrator wired to the components.
func (c *Components) NewOrchestrator(id string) (*pipeline.Orchestrator, error) {
	return pipeline.New(pipeline.Options{
		ID:            id,
		Analyzer:      c.Extractor,
		Submitter:     c.LetzAI,
		Poller:        c.Poller,
		PollInterval:  c.pollInterval,
		SubmitTimeout: c.submitTimeout,
		Logger:        c.logger,
	})
}
