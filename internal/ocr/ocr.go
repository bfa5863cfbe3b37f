package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/cestaprecios/pkg/errors"
)

const (
	DefaultLanguage       = "spa"
	responseBodyReadLimit = int64(1024)
)

// Recognizer turns a receipt photo into raw text.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, lang string) (string, error)
}

// Disabled rejects every image. It stands in when no OCR endpoint is configured.
type Disabled struct{}

func (Disabled) Recognize(context.Context, []byte, string) (string, error) {
	return "", pkgerrors.New(pkgerrors.CodeDependency, "ocr endpoint not configured")
}

// Client posts images to an HTTP OCR service that answers {"text": "..."}.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout replaces the default HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// New returns Disabled when endpoint is blank.
func New(endpoint string, opts ...Option) Recognizer {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return Disabled{}
	}
	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		endpoint:   trimmed,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

func (c *Client) Recognize(ctx context.Context, image []byte, lang string) (string, error) {
	if len(image) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image is required")
	}
	if strings.TrimSpace(lang) == "" {
		lang = DefaultLanguage
	}

	target, err := url.Parse(c.endpoint)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse ocr endpoint")
	}
	query := target.Query()
	query.Set("lang", lang)
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(image))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build ocr request")
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute ocr request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "ocr request failed")
	}

	var apiResp struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode ocr response")
	}
	return apiResp.Text, nil
}
