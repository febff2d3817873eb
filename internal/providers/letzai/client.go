package letzai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"actionfigure/internal/domain"
	"actionfigure/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = domain.Errorf(domain.KindMissingCredentials, "letzai: api key is required")

const maxResponseBytes = 1 << 20

// Params are the fixed generation settings sent with every submission.
type Params struct {
	Width         int
	Height        int
	Quality       int
	Creativity    int
	HasWatermark  bool
	SystemVersion int
	Mode          string
}

// DefaultParams mirrors the provider's documented defaults.
func DefaultParams() Params {
	return Params{
		Width:         1024,
		Height:        1024,
		Quality:       2,
		Creativity:    2,
		HasWatermark:  true,
		SystemVersion: 3,
		Mode:          "default",
	}
}

// Accepted ranges for per-request overrides.
const (
	MinDimension = 520
	MaxDimension = 2160
	MinLevel     = 1
	MaxLevel     = 5
)

// ErrInvalidParams reports an override outside the accepted ranges.
var ErrInvalidParams = errors.New("letzai: invalid params")

// Overrides replace individual Params fields; nil fields keep the base value.
type Overrides struct {
	Width        *int  `json:"width,omitempty"`
	Height       *int  `json:"height,omitempty"`
	Quality      *int  `json:"quality,omitempty"`
	Creativity   *int  `json:"creativity,omitempty"`
	HasWatermark *bool `json:"hasWatermark,omitempty"`
}

// Apply returns p with o applied.
func (p Params) Apply(o Overrides) (Params, error) {
	check := func(name string, v *int, lo, hi int, dst *int) error {
		if v == nil {
			return nil
		}
		if *v < lo || *v > hi {
			return fmt.Errorf("%w: %s must be between %d and %d", ErrInvalidParams, name, lo, hi)
		}
		*dst = *v
		return nil
	}
	if err := check("width", o.Width, MinDimension, MaxDimension, &p.Width); err != nil {
		return Params{}, err
	}
	if err := check("height", o.Height, MinDimension, MaxDimension, &p.Height); err != nil {
		return Params{}, err
	}
	if err := check("quality", o.Quality, MinLevel, MaxLevel, &p.Quality); err != nil {
		return Params{}, err
	}
	if err := check("creativity", o.Creativity, MinLevel, MaxLevel, &p.Creativity); err != nil {
		return Params{}, err
	}
	if o.HasWatermark != nil {
		p.HasWatermark = *o.HasWatermark
	}
	return p, nil
}

// Options configures the Letz.ai client.
type Options struct {
	APIKey         string
	BaseURL        string
	Params         Params
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the Letz.ai image API. Calls are never retried.
type Client struct {
	apiKey     string
	baseURL    string
	params     Params
	httpClient *http.Client
	timeout    time.Duration
	logger     *infra.Logger
}

type submitRequest struct {
	Prompt        string `json:"prompt"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Quality       int    `json:"quality"`
	Creativity    int    `json:"creativity"`
	HasWatermark  bool   `json:"hasWatermark"`
	SystemVersion int    `json:"systemVersion"`
	Mode          string `json:"mode"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type statusResponse struct {
	Status        string            `json:"status"`
	Progress      *float64          `json:"progress"`
	PreviewImage  *string           `json:"previewImage"`
	ImageVersions map[string]string `json:"imageVersions"`
	Message       *string           `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.letz.ai"
	}
	params := opts.Params
	defaults := DefaultParams()
	if params == (Params{}) {
		params = defaults
	}
	if params.Width <= 0 {
		params.Width = defaults.Width
	}
	if params.Height <= 0 {
		params.Height = defaults.Height
	}
	if params.Quality <= 0 {
		params.Quality = defaults.Quality
	}
	if params.Creativity <= 0 {
		params.Creativity = defaults.Creativity
	}
	if params.SystemVersion <= 0 {
		params.SystemVersion = defaults.SystemVersion
	}
	if strings.TrimSpace(params.Mode) == "" {
		params.Mode = defaults.Mode
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		params:     params,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Params returns the generation settings sent with each submission.
func (c *Client) Params() Params {
	return c.params
}

// Submit starts an asynchronous generation job for prompt with the client's
// configured params.
func (c *Client) Submit(ctx context.Context, prompt string) (domain.Submission, error) {
	return c.SubmitWith(ctx, prompt, c.params)
}

// SubmitWith starts a generation job using params instead of the configured
// ones. Callers build params with Params.Apply.
func (c *Client) SubmitWith(ctx context.Context, prompt string, params Params) (domain.Submission, error) {
	if !c.HasCredentials() {
		return domain.Submission{}, ErrMissingAPIKey
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return domain.Submission{}, errors.New("letzai: prompt is required")
	}
	payload := submitRequest{
		Prompt:        prompt,
		Width:         params.Width,
		Height:        params.Height,
		Quality:       params.Quality,
		Creativity:    params.Creativity,
		HasWatermark:  params.HasWatermark,
		SystemVersion: params.SystemVersion,
		Mode:          params.Mode,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("letzai: encode request: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/images", body)
	if err != nil {
		return domain.Submission{}, err
	}
	var decoded submitResponse
	if err := decodeValidated(raw, submitSchema, &decoded); err != nil {
		return domain.Submission{}, err
	}

	status, ok := domain.ParseJobStatus(decoded.Status)
	if !ok {
		return domain.Submission{}, domain.Errorf(domain.KindMalformedResponse, "letzai: unknown job status %q", decoded.Status)
	}
	sub := domain.Submission{
		JobID:  strings.TrimSpace(decoded.ID),
		Status: status,
	}
	c.logger.Debug().Str("job_id", sub.JobID).Str("status", string(sub.Status)).Msg("letzai: job submitted")
	return sub, nil
}

// Status fetches one status snapshot for jobID. The raw provider status is
// passed through; interpreting it is the poller's job.
func (c *Client) Status(ctx context.Context, jobID string) (domain.StatusReport, error) {
	if !c.HasCredentials() {
		return domain.StatusReport{}, ErrMissingAPIKey
	}
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.StatusReport{}, errors.New("letzai: job id is required")
	}

	raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/images/"+url.PathEscape(jobID), nil)
	if err != nil {
		return domain.StatusReport{}, err
	}
	var decoded statusResponse
	if err := decodeValidated(raw, statusSchema, &decoded); err != nil {
		return domain.StatusReport{}, err
	}

	report := domain.StatusReport{
		Status:        domain.JobStatus(strings.ToLower(strings.TrimSpace(decoded.Status))),
		ImageVersions: decoded.ImageVersions,
	}
	if decoded.Progress != nil {
		p := int(math.Round(*decoded.Progress))
		report.Progress = &p
	}
	if decoded.PreviewImage != nil {
		report.PreviewImage = strings.TrimSpace(*decoded.PreviewImage)
	}
	if decoded.Message != nil {
		report.Message = strings.TrimSpace(*decoded.Message)
	}
	return report, nil
}

// Download fetches a finished image version.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("letzai: invalid image url: %s", imageURL)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("letzai: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", domain.Classify(ctx, err, "letzai: download image")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", domain.Errorf(domain.KindProviderRejected, "letzai: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", domain.Classify(ctx, err, "letzai: read image")
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = http.DetectContentType(data)
	}
	return data, format, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("letzai: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Classify(ctx, err, "letzai: http request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.Classify(ctx, err, "letzai: read response")
	}

	if resp.StatusCode >= 300 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil {
			switch {
			case strings.TrimSpace(detail.Message) != "":
				msg = strings.TrimSpace(detail.Message)
			case strings.TrimSpace(detail.Error) != "":
				msg = strings.TrimSpace(detail.Error)
			}
		}
		return nil, domain.Errorf(domain.KindProviderRejected, "letzai: %s", msg)
	}
	return raw, nil
}

func decodeValidated(raw []byte, schema *jsonschema.Resolved, out any) error {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return domain.Wrap(domain.KindMalformedResponse, "letzai: decode response", err)
	}
	if err := schema.Validate(instance); err != nil {
		return domain.Wrap(domain.KindMalformedResponse, "letzai: unexpected response shape", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.Wrap(domain.KindMalformedResponse, "letzai: decode response", err)
	}
	return nil
}
