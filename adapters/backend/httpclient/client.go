// Package backendhttp talks to the school backend over its REST JSON API.
package backendhttp

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

	"github.com/goliatone/go-schooldocs/docgen"
)

const (
	// TemplatesPath lists template descriptors.
	TemplatesPath = "/api/templates"
	// RecordsPath accepts generated-document records.
	RecordsPath = "/api/generated-documents"

	defaultTimeout      = 10 * time.Second
	defaultMaxBodyBytes = 4 << 20
)

// Client implements docgen.Backend against the REST API.
type Client struct {
	BaseURL      string
	HTTPClient   *http.Client
	Token        string
	Headers      map[string]string
	Timeout      time.Duration
	MaxBodyBytes int64
}

var _ docgen.Backend = (*Client)(nil)

// NewClient creates a client for baseURL.
func NewClient(baseURL string) *Client {
	return &Client{BaseURL: baseURL}
}

type templatesEnvelope struct {
	Templates []docgen.TemplateDescriptor `json:"templates"`
}

// ListTemplates fetches descriptors. The body may be a bare array or an
// object with a "templates" field.
func (c *Client) ListTemplates(ctx context.Context) ([]docgen.TemplateDescriptor, error) {
	if c == nil {
		return nil, docgen.NewError(docgen.KindInternal, "backend client is nil", nil)
	}
	body, err := c.do(ctx, http.MethodGet, TemplatesPath, nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []docgen.TemplateDescriptor
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, docgen.NewError(docgen.KindNetwork, "decode templates response", err)
		}
		return list, nil
	}
	var env templatesEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, docgen.NewError(docgen.KindNetwork, "decode templates response", err)
	}
	return env.Templates, nil
}

// SubmitRecord posts a generated-document record.
func (c *Client) SubmitRecord(ctx context.Context, record docgen.GeneratedRecord) error {
	if c == nil {
		return docgen.NewError(docgen.KindInternal, "backend client is nil", nil)
	}
	if record.ArtifactID == "" {
		return docgen.NewError(docgen.KindValidation, "artifact ID is required", nil)
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return docgen.NewError(docgen.KindValidation, "record payload invalid", err)
	}
	_, err = c.do(ctx, http.MethodPost, RecordsPath, payload)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	endpoint, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, docgen.NewError(docgen.KindInternal, "backend request failed", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		req.Header.Set(key, value)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, docgen.NewError(docgen.KindNetwork, fmt.Sprintf("%s %s timed out", method, path), err)
		}
		return nil, docgen.NewError(docgen.KindNetwork, fmt.Sprintf("%s %s failed", method, path), err)
	}
	defer resp.Body.Close()

	limit := c.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, docgen.NewError(docgen.KindNetwork, "read backend response", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, docgen.NewError(docgen.KindNetwork, fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode), nil)
	}
	return data, nil
}

func (c *Client) endpoint(path string) (string, error) {
	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		return "", docgen.NewError(docgen.KindNotImpl, "backend base URL not configured", nil)
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", docgen.NewError(docgen.KindValidation, fmt.Sprintf("invalid backend base URL %q", base), err)
	}
	return strings.TrimRight(base, "/") + path, nil
}
