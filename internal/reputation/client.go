// Package reputation queries an external threat-intelligence service for
// file-hash reputation reports.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BhargaviGangoor/Wassup-Guard/internal/guard"
)

// Client calls a VirusTotal-compatible v3 file report endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  guard.Logger
}

var _ guard.ReputationClient = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a reputation client for the given service base URL.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger guard.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// fileReport mirrors the service's response shape. Every field is
// optional; missing analysis data maps to a neutral report.
type fileReport struct {
	Data struct {
		ID         string `json:"id"`
		Type       string `json:"type"`
		Attributes struct {
			LastAnalysisStats *struct {
				Harmless   int `json:"harmless"`
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Undetected int `json:"undetected"`
				Timeout    int `json:"timeout"`
			} `json:"last_analysis_stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// Lookup fetches the report for a content hash.
//
// Error taxonomy: transport failures wrap guard.ErrNetwork; an explicit
// 429 wraps guard.ErrThrottled (distinct from local quota denial); an
// undecodable body wraps guard.ErrMalformedResponse. A 404 is not an
// error: the service simply has no analysis for the hash, and a neutral
// report is returned.
func (c *Client) Lookup(ctx context.Context, hash string) (*guard.ThreatReport, error) {
	url := c.baseURL + "/files/" + hash

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %v: %w", c.baseURL, err, guard.ErrNetwork)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.logger.Debug("hash unknown to reputation service", "hash", hash)
		return &guard.ThreatReport{Hash: hash}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("service returned 429: %w", guard.ErrThrottled)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("service returned status %d: %w", resp.StatusCode, guard.ErrNetwork)
	}

	var body fileReport
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding report: %v: %w", err, guard.ErrMalformedResponse)
	}

	report := &guard.ThreatReport{Hash: hash}
	if stats := body.Data.Attributes.LastAnalysisStats; stats != nil {
		report.HasAnalysis = true
		report.Harmless = stats.Harmless
		report.Malicious = stats.Malicious
		report.Suspicious = stats.Suspicious
		report.Undetected = stats.Undetected
		report.Timeout = stats.Timeout
	}
	return report, nil
}
