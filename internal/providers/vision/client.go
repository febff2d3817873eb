package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"actionfigure/internal/domain"
	"actionfigure/internal/infra"
)

// SystemPrompt frames the vision model as an action-figure describer.
const SystemPrompt = "You are an AI specialized in analyzing images and describing them as if they were action figures in packaging. Be creative and detailed in your analysis."

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 1000
	defaultTemperature = 0.7
)

// Options configures the OpenAI-compatible vision client.
type Options struct {
	APIKey       string
	BaseURL      string
	Model        string
	Organization string
	MaxTokens    int64
	Temperature  float64
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client streams chat completions with an inline image.
type Client struct {
	apiKey      string
	model       string
	maxTokens   int64
	temperature float64
	api         openai.Client
	logger      *infra.Logger
}

// Request is one analysis call.
type Request struct {
	Instruction string
	Attachment  domain.Attachment
}

// FragmentStream yields text fragments in arrival order. Next blocks until a
// fragment is available or the stream ends; Err reports why it ended.
type FragmentStream interface {
	Next() bool
	Fragment() string
	Err() error
	Close() error
}

func NewClient(opts Options) *Client {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	apiKey := strings.TrimSpace(opts.APIKey)

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base+"/"))
	}
	if org := strings.TrimSpace(opts.Organization); org != "" {
		reqOpts = append(reqOpts, option.WithOrganization(org))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	} else {
		// No client-level timeout: the stream lifetime is bounded by the caller's context.
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: 30 * time.Second,
		}}))
	}

	return &Client{
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		api:         openai.NewClient(reqOpts...),
		logger:      logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Stream opens a streaming analysis. The HTTP exchange starts lazily on the
// first Next call; request failures surface through Err.
func (c *Client) Stream(ctx context.Context, req Request) (FragmentStream, error) {
	if !c.HasCredentials() {
		return nil, domain.Errorf(domain.KindMissingCredentials, "vision: api key is required")
	}
	if err := req.Attachment.Validate(); err != nil {
		return nil, err
	}
	instruction := strings.TrimSpace(req.Instruction)
	if instruction == "" {
		return nil, errors.New("vision: instruction is required")
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SystemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(instruction),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: req.Attachment.DataURL(),
				}),
			}),
		},
		MaxTokens:   openai.Int(c.maxTokens),
		Temperature: openai.Float(c.temperature),
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("media_type", req.Attachment.MediaType).
		Int("bytes", req.Attachment.Size()).
		Msg("vision: opening analysis stream")

	return &chunkStream{stream: c.api.Chat.Completions.NewStreaming(ctx, params)}, nil
}

type chunkStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *chunkStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			s.current = text
			return true
		}
	}
	return false
}

func (s *chunkStream) Fragment() string {
	return s.current
}

func (s *chunkStream) Err() error {
	err := s.stream.Err()
	if err == nil {
		return nil
	}
	return classify(err)
}

func (s *chunkStream) Close() error {
	return s.stream.Close()
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" {
			msg = http.StatusText(apiErr.StatusCode)
		}
		return domain.Wrap(domain.KindProviderRejected, fmt.Sprintf("vision: %s (status %d)", msg, apiErr.StatusCode), err)
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	kind := domain.KindOf(err)
	if kind == domain.KindProviderRejected {
		// Anything not from the API or the transport is an undecodable chunk.
		kind = domain.KindMalformedResponse
	}
	return domain.Wrap(kind, "vision: stream failed", err)
}
