// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2024-2026 zerohunt contributors
// https://github.com/fr4nsys/zerohunt

// Package zn is the Zero Networks portal API client: authenticated requests,
// cursor pagination, retry with backoff, and asset name resolution.
package zn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fr4nsys/zerohunt/internal/models"
	"github.com/fr4nsys/zerohunt/internal/pkg/errors"
	"github.com/fr4nsys/zerohunt/internal/pkg/logger"
)

const (
	// DefaultBaseURL is the production portal, used when the API key's aud
	// claim does not carry a tenant URL.
	DefaultBaseURL = "https://portal.zeronetworks.com"
	// DefaultAPIPath is prepended to every endpoint path.
	DefaultAPIPath = "/api/v1"

	activitiesEndpoint = "/activities/network"
	assetsEndpoint     = "/assets"
)

// Client talks to the Zero Networks REST API. The API key is a JWT sent raw
// in the Authorization header. The transport is injectable for tests.
type Client struct {
	baseURL    string
	apiPath    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient injects the HTTP transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the portal base URL. An aud claim in the API key
// still takes precedence, matching the portal's own key issuance.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithLogger sets the client logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient builds a client from an API key. The key's aud claim names the
// tenant portal URL; without one the configured or default base URL is used.
// An expired key produces a warning, not an error, so the upstream 401 stays
// the source of truth.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New(errors.CodeValidation, "API key cannot be empty")
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		apiPath: DefaultAPIPath,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if aud, exp, err := inspectAPIKey(apiKey); err != nil {
		c.log.Warn("could not introspect API key, using configured base URL",
			"base_url", c.baseURL, "error", err)
	} else {
		if aud != "" {
			c.baseURL = strings.TrimSuffix(aud, "/")
		}
		if exp != nil && exp.Before(time.Now()) {
			c.log.Warn("API key is expired; requests will likely be rejected",
				"expired_at", exp.Format(time.RFC3339))
		}
	}

	c.log.Debug("initialized Zero Networks client", "base_url", c.baseURL)
	return c, nil
}

// inspectAPIKey parses the key as an unverified JWT and returns the aud
// claim and expiry. The signature is the portal's business, not ours.
func inspectAPIKey(apiKey string) (aud string, exp *time.Time, err error) {
	token, _, err := jwt.NewParser().ParseUnverified(apiKey, jwt.MapClaims{})
	if err != nil {
		return "", nil, fmt.Errorf("parse API key JWT: %w", err)
	}

	if auds, err := token.Claims.GetAudience(); err == nil && len(auds) > 0 {
		aud = auds[0]
	}
	if expClaim, err := token.Claims.GetExpirationTime(); err == nil && expClaim != nil {
		t := expClaim.Time
		exp = &t
	}
	return aud, exp, nil
}

// BaseURL returns the resolved portal base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// HTTP helpers
// ============================================================================

func (c *Client) get(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	u := c.baseURL + c.apiPath + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "create request")
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Cancelled(ctx.Err())
		}
		// Connection resets and client timeouts are retryable.
		return nil, errors.Wrap(err, errors.CodeTransientUpstream, "request failed")
	}
	return resp, nil
}

// decodeJSON drains and decodes a response, mapping error statuses onto the
// hunt error taxonomy.
func decodeJSON[T any](resp *http.Response) (T, error) {
	var result T
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusNotFound {
			return result, errors.NotFound("resource").WithDetail("status", resp.StatusCode)
		}
		return result, errors.ClassifyHTTPStatus(resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, errors.Wrap(err, errors.CodeFatalUpstream, "decode response")
	}
	return result, nil
}

// ============================================================================
// Endpoints
// ============================================================================

// ActivitiesPage fetches a single page of network activities matching the
// filter. An empty cursor requests the first page.
func (c *Client) ActivitiesPage(ctx context.Context, filter models.QueryFilter, cursor string, limit int) (models.ActivityPage, error) {
	filters, err := encodeFilters(filter)
	if err != nil {
		return models.ActivityPage{}, err
	}

	params := url.Values{}
	params.Set("order", "desc")
	params.Set("_limit", strconv.Itoa(limit))
	params.Set("from", strconv.FormatInt(filter.Window.From, 10))
	params.Set("to", strconv.FormatInt(filter.Window.To, 10))
	params.Set("_filters", filters)
	if cursor != "" {
		params.Set("_cursor", cursor)
	}

	resp, err := c.get(ctx, activitiesEndpoint, params)
	if err != nil {
		return models.ActivityPage{}, err
	}
	return decodeJSON[models.ActivityPage](resp)
}

// GetAsset fetches one asset by ID.
func (c *Client) GetAsset(ctx context.Context, assetID string) (models.Asset, error) {
	resp, err := c.get(ctx, assetsEndpoint+"/"+url.PathEscape(assetID), nil)
	if err != nil {
		return models.Asset{}, err
	}
	return decodeJSON[models.Asset](resp)
}

// ============================================================================
// Wire encoding
// ============================================================================

// filterPayload is the JSON shape of one entry in the _filters parameter.
type filterPayload struct {
	ID            string        `json:"id"`
	IncludeValues []interface{} `json:"includeValues"`
	ExcludeValues []interface{} `json:"excludeValues"`
}

// encodeFilters renders a QueryFilter as the _filters JSON array. Port
// values go over the wire as numbers, everything else as strings.
func encodeFilters(f models.QueryFilter) (string, error) {
	p := filterPayload{
		ID:            string(f.Field),
		IncludeValues: make([]interface{}, 0, len(f.IncludeValues)),
		ExcludeValues: make([]interface{}, 0, len(f.ExcludeValues)),
	}

	numeric := f.Field == models.FilterFieldDstPort
	convert := func(vals []string) ([]interface{}, error) {
		out := make([]interface{}, 0, len(vals))
		for _, v := range vals {
			if numeric {
				n, err := strconv.Atoi(v)
				if err != nil {
					return nil, errors.Newf(errors.CodeValidation, "port value %q is not numeric", v)
				}
				out = append(out, n)
				continue
			}
			out = append(out, v)
		}
		return out, nil
	}

	var err error
	if p.IncludeValues, err = convert(f.IncludeValues); err != nil {
		return "", err
	}
	if p.ExcludeValues, err = convert(f.ExcludeValues); err != nil {
		return "", err
	}

	b, err := json.Marshal([]filterPayload{p})
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "marshal filters")
	}
	return string(b), nil
}
