// Package catalog downloads shared rule packs. A pack is a JSON document
// with group metadata and a rule array; the client validates it and hands a
// ready-to-merge group to the rule store.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raaihank/lyricsmith/internal/rules"
	"github.com/raaihank/lyricsmith/internal/rulestore"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config contains catalog client settings.
type Config struct {
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// maxPackSize caps how much of a response body is read.
const maxPackSize = 4 << 20

// Client fetches rule packs over HTTP. Requests are rate limited so a
// misbehaving sync loop cannot hammer the catalog host.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a catalog client.
func NewClient(config *Config, logger *zap.Logger) *Client {
	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	rps := config.RequestsPerSec
	if rps == 0 {
		rps = 2
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: config.BaseURL,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// packMetadata is the metadata section of a pack document.
type packMetadata struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Author      string `json:"author"`
	Version     string `json:"version"`
}

// packRule mirrors the wire rule with a nullable enabled flag.
type packRule struct {
	Description      string `json:"description"`
	Find             string `json:"find"`
	Replace          string `json:"replace"`
	Flags            string `json:"flags"`
	Enabled          *bool  `json:"enabled"`
	EnhancedBoundary bool   `json:"enhancedBoundary"`
}

type packDocument struct {
	Metadata packMetadata `json:"metadata"`
	Rules    []packRule   `json:"rules"`
}

// Fetch downloads the pack at the given URL. Relative URLs are resolved
// against the configured base.
func (c *Client) Fetch(ctx context.Context, packURL string) (rulestore.RuleGroup, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return rulestore.RuleGroup{}, err
	}

	full := packURL
	if c.baseURL != "" && len(packURL) > 0 && packURL[0] == '/' {
		full = c.baseURL + packURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return rulestore.RuleGroup{}, fmt.Errorf("failed to build catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return rulestore.RuleGroup{}, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rulestore.RuleGroup{}, fmt.Errorf("catalog returned status %d for %s", resp.StatusCode, full)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPackSize))
	if err != nil {
		return rulestore.RuleGroup{}, fmt.Errorf("failed to read pack body: %w", err)
	}

	var doc packDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return rulestore.RuleGroup{}, fmt.Errorf("failed to decode pack: %w", err)
	}
	if doc.Metadata.ID == "" {
		return rulestore.RuleGroup{}, fmt.Errorf("pack has no id")
	}

	group := rulestore.RuleGroup{
		ID:          doc.Metadata.ID,
		Title:       doc.Metadata.Title,
		Description: doc.Metadata.Description,
		Author:      doc.Metadata.Author,
		Version:     doc.Metadata.Version,
	}
	for _, pr := range doc.Rules {
		if pr.Find == "" || pr.Replace == "" {
			continue
		}
		flags := pr.Flags
		if flags == "" {
			flags = "g"
		}
		group.Rules = append(group.Rules, rules.Rule{
			Description:      pr.Description,
			Find:             pr.Find,
			Replace:          pr.Replace,
			Flags:            flags,
			Enabled:          pr.Enabled == nil || *pr.Enabled,
			EnhancedBoundary: pr.EnhancedBoundary,
		})
	}

	c.logger.Info("Rule pack fetched",
		zap.String("pack_id", group.ID),
		zap.String("version", group.Version),
		zap.Int("rules", len(group.Rules)))

	return group, nil
}
