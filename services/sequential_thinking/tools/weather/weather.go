// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package weather looks up live weather from the Amap (Gaode) API.
// One outbound GET and a status-code branch; the JSON body passes through
// to the caller unmodified.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/AleutianAI/ThoughtStream/pkg/validation"
	"github.com/AleutianAI/ThoughtStream/services/sequential_thinking/session"
)

// DefaultBaseURL is the Amap live-weather endpoint.
const DefaultBaseURL = "https://restapi.amap.com/v3/weather/weatherInfo"

// HTTPClient interface allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client performs weather lookups.
type Client struct {
	HTTPClient HTTPClient
	APIKey     string
	BaseURL    string
}

// NewClient builds a Client with the default endpoint and http.DefaultClient.
func NewClient(apiKey string) *Client {
	return &Client{
		HTTPClient: http.DefaultClient,
		APIKey:     apiKey,
		BaseURL:    DefaultBaseURL,
	}
}

// Lookup fetches current weather for an Amap district code.
//
// Returns the decoded API response as-is; the Amap payload carries its own
// status/info fields that the caller may inspect.
func (c *Client) Lookup(ctx context.Context, adcode string) (map[string]any, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("weather API key is not configured")
	}
	if err := validation.ValidateAdcode(adcode); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("city", adcode)
	params.Set("key", c.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode weather response: %w", err)
	}
	return data, nil
}

// Tool adapts the client to the dispatcher's tool contract.
// The bound session is ignored; weather lookups have no session affinity.
func (c *Client) Tool() func(ctx context.Context, sess *session.ThinkingSession, args json.RawMessage) (any, error) {
	type request struct {
		Adcode string `json:"adcode"`
	}

	return func(ctx context.Context, _ *session.ThinkingSession, args json.RawMessage) (any, error) {
		var req request
		if err := json.Unmarshal(args, &req); err != nil {
			return nil, fmt.Errorf("invalid weather arguments: %w", err)
		}
		return c.Lookup(ctx, req.Adcode)
	}
}
