package speaches

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"meetwatch/internal/services"
)

const placeholderAPIKey = "unused"

// Config describes the transcription endpoint.
type Config struct {
	BaseURL    string
	Model      string
	APIKey     string
	Language   string
	HealthPath string
}

// Client submits audio chunks to an OpenAI-compatible transcription server
// and probes its health endpoint.
type Client struct {
	cfg        Config
	api        openai.Client
	httpClient *http.Client
}

// New constructs a transcription client. Requests are never retried: a chunk
// that fails is dropped by the caller.
func New(cfg Config, opts ...option.RequestOption) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = placeholderAPIKey
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(cfg.BaseURL + "/v1/"),
		option.WithMaxRetries(0),
	}
	return &Client{
		cfg:        cfg,
		api:        openai.NewClient(append(base, opts...)...),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Model returns the configured model id.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Transcribe posts one WAV-encoded chunk and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, wav []byte, filename string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(c.cfg.Model),
		File:  openai.File(bytes.NewReader(wav), filename, "audio/wav"),
	}
	if c.cfg.Language != "" {
		params.Language = openai.String(c.cfg.Language)
	}
	result, err := c.api.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", services.Wrap(services.ErrBackground, "speaches", "transcribe", filename, err)
	}
	return strings.TrimSpace(result.Text), nil
}

// Health checks the server's health endpoint. Any non-2xx answer or transport
// failure reports ErrTranscriptionUnavailable.
func (c *Client) Health(ctx context.Context) error {
	url := c.cfg.BaseURL + c.cfg.HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return services.Wrap(services.ErrTranscriptionUnavailable, "speaches", "health", url, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTranscriptionUnavailable, "speaches", "health", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return services.Wrap(services.ErrTranscriptionUnavailable, "speaches", "health", fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	}
	return nil
}
