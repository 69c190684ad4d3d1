// Package jimeng wraps the Volcengine visual API (CVProcess) used by the
// Jimeng image generation service.
package jimeng

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

	"github.com/comeonzhj/jimengpic-mcp/internal/sign"
)

const (
	// DefaultReqKey selects the Jimeng 2.1 general text-to-image model.
	DefaultReqKey = "jimeng_high_aes_general_v21_L"

	actionName    = "CVProcess"
	actionVersion = "2022-08-31"
)

// ErrMissingCredentials reports that no access key pair is configured. It is
// returned before any signing or network activity.
var ErrMissingCredentials = errors.New("jimeng access key and secret key are not configured")

// APIError is an upstream application error: the HTTP call succeeded but the
// response carries an error object in its metadata.
type APIError struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("visual api error %s: %s", e.Code, e.Message)
}

// Doer performs HTTP requests (allows mocking).
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	Credentials sign.Credentials
	Sign        sign.Config
	ReqKey      string
}

// Client calls the CVProcess endpoint with signed requests. One request is
// issued per Generate call; there are no retries.
type Client struct {
	cfg    Config
	signer *sign.Signer
	http   Doer
}

func NewClient(cfg Config) *Client {
	return NewClientWithHTTP(cfg, &http.Client{Timeout: 60 * time.Second})
}

func NewClientWithHTTP(cfg Config, doer Doer) *Client {
	if cfg.ReqKey == "" {
		cfg.ReqKey = DefaultReqKey
	}
	if cfg.Sign == (sign.Config{}) {
		cfg.Sign = sign.DefaultConfig()
	}
	return &Client{
		cfg:    cfg,
		signer: sign.New(cfg.Sign, cfg.Credentials),
		http:   doer,
	}
}

type cvRequest struct {
	ReqKey    string `json:"req_key"`
	Prompt    string `json:"prompt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	ReturnURL bool   `json:"return_url"`
}

type cvResponse struct {
	ResponseMetadata struct {
		Error *APIError `json:"Error"`
	} `json:"ResponseMetadata"`
	Data struct {
		ImageURLs []string `json:"image_urls"`
	} `json:"data"`
}

// Generate submits one text-to-image request and returns the first image
// URL. A valid response with no URLs returns ("", nil); the caller decides
// how to present the empty outcome.
func (c *Client) Generate(ctx context.Context, prompt string, width, height int) (string, error) {
	if c.cfg.Credentials.AccessKey == "" || c.cfg.Credentials.SecretKey == "" {
		return "", ErrMissingCredentials
	}

	body, err := json.Marshal(cvRequest{
		ReqKey:    c.cfg.ReqKey,
		Prompt:    prompt,
		Width:     width,
		Height:    height,
		ReturnURL: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	signed := c.signer.Sign(map[string]string{
		"Action":  actionName,
		"Version": actionVersion,
	}, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signed.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	for name, value := range signed.Headers {
		req.Header.Set(name, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("call visual api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("visual api status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	return parseImageURL(raw)
}

// parseImageURL extracts the first image URL from a CVProcess response body.
func parseImageURL(raw []byte) (string, error) {
	// The upstream encodes ampersands in image URLs as the escape sequence
	// \u0026, which breaks consumers of the extracted URL. Undo exactly
	// that escape and nothing else; the workaround is scoped to the known
	// quirk.
	normalized := strings.ReplaceAll(string(raw), `\u0026`, "&")

	var parsed cvResponse
	if err := json.Unmarshal([]byte(normalized), &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if apiErr := parsed.ResponseMetadata.Error; apiErr != nil {
		return "", apiErr
	}
	if len(parsed.Data.ImageURLs) == 0 {
		return "", nil
	}
	return parsed.Data.ImageURLs[0], nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
