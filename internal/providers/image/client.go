package image

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"promptqueue/internal/infra"
)

const defaultRequestPath = "/v1/images/generations"

// Options controls how the generation client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a JSON-over-HTTP image generation client. It translates the
// normalized GenerateRequest into the provider wire format and folds every
// failure mode (transport, rejection, malformed body) into a GenerationError
// so callers can surface it on the job record.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient validates the options and returns a ready client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("image: base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      strings.TrimSpace(opts.Model),
		httpClient: httpClient,
		logger:     opts.Logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

type generationRequest struct {
	Model       string `json:"model,omitempty"`
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	RequestID   string `json:"request_id,omitempty"`
}

type generationImage struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type generationResponse struct {
	Images []generationImage `json:"images"`
	Error  *struct {
		Code    string `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// Generate submits one prompt and returns the produced asset. The returned
// error, when non-nil, is always a *GenerationError.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Asset, error) {
	payload := generationRequest{
		Model:       c.model,
		Prompt:      req.Prompt,
		AspectRatio: string(req.AspectRatio),
		RequestID:   req.RequestID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Asset{}, &GenerationError{Message: fmt.Sprintf("encode request: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+defaultRequestPath, bytes.NewReader(body))
	if err != nil {
		return Asset{}, &GenerationError{Message: fmt.Sprintf("build request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Asset{}, &GenerationError{Message: fmt.Sprintf("generation request failed: %v", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Asset{}, &GenerationError{Message: fmt.Sprintf("read response: %v", err)}
	}

	var decoded generationResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Asset{}, &GenerationError{Message: fmt.Sprintf("malformed response (status %d)", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK || decoded.Error != nil {
		message := fmt.Sprintf("provider returned status %d", resp.StatusCode)
		if decoded.Error != nil && decoded.Error.Message != "" {
			message = decoded.Error.Message
		}
		if c.logger != nil {
			c.logger.Warn().Int("status", resp.StatusCode).Str("request_id", req.RequestID).Msg("image: generation rejected")
		}
		return Asset{}, &GenerationError{Message: message}
	}
	if len(decoded.Images) == 0 {
		return Asset{}, &GenerationError{Message: "provider returned no images"}
	}

	img := decoded.Images[0]
	return Asset{
		URL:    img.URL,
		Format: img.Format,
		Width:  img.Width,
		Height: img.Height,
	}, nil
}

var _ Generator = (*Client)(nil)
