// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sidechannel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/console/bridge"
	"github.com/bureau-foundation/console/lib/netutil"
	"github.com/bureau-foundation/console/lib/version"
	"github.com/bureau-foundation/console/protocol"
	"github.com/bureau-foundation/console/transcript"
	"github.com/bureau-foundation/console/transport"
)

var (
	_ transport.TokenSource = (*Client)(nil)
	_ bridge.ProfileStarter = (*Client)(nil)
	_ transcript.Resumer    = (*Client)(nil)
)

// Config configures a Client.
type Config struct {
	// BaseURL is the http:// or https:// root of the host API.
	BaseURL string

	// Token, if set, is sent as a bearer token on every request except
	// FetchToken.
	Token string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client calls the host's side-channel API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client.
func NewClient(config Config) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("sidechannel: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("sidechannel: invalid BaseURL: %w", err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// FetchToken asks the host for a session token.
func (c *Client) FetchToken(ctx context.Context) (string, error) {
	var response tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/token", nil, nil, &response, false); err != nil {
		return "", err
	}
	if response.Token == "" {
		return "", errors.New("sidechannel: token response has no token")
	}
	return response.Token, nil
}

// ListProfiles returns every profile.
func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var response profilesResponse
	if err := c.do(ctx, http.MethodGet, "/api/profiles", nil, nil, &response, true); err != nil {
		return nil, err
	}
	return response.Profiles, nil
}

// CreateProfile creates a profile and returns it.
func (c *Client) CreateProfile(ctx context.Context, request CreateProfileRequest) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodPost, "/api/profiles", nil, request, &profile, true); err != nil {
		return nil, err
	}
	return &profile, nil
}

// StartProfile starts a profile's agent process.
func (c *Client) StartProfile(ctx context.Context, profileID string) error {
	return c.do(ctx, http.MethodPost, profilePath(profileID, "start"), nil, nil, nil, true)
}

// StopProfile stops a profile's agent process.
func (c *Client) StopProfile(ctx context.Context, profileID string) error {
	return c.do(ctx, http.MethodPost, profilePath(profileID, "stop"), nil, nil, nil, true)
}

// DeleteProfile removes a profile.
func (c *Client) DeleteProfile(ctx context.Context, profileID string) error {
	return c.do(ctx, http.MethodDelete, profilePath(profileID, ""), nil, nil, nil, true)
}

// ProfileConfig fetches a profile's configuration file.
func (c *Client) ProfileConfig(ctx context.Context, profileID string) (*ProfileConfig, error) {
	var config ProfileConfig
	if err := c.do(ctx, http.MethodGet, profilePath(profileID, "config"), nil, nil, &config, true); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveProfileConfig replaces a profile's configuration file.
func (c *Client) SaveProfileConfig(ctx context.Context, profileID string, config ProfileConfig) error {
	return c.do(ctx, http.MethodPut, profilePath(profileID, "config"), nil, config, nil, true)
}

// ResumeThread fetches the full turn history of a thread.
func (c *Client) ResumeThread(ctx context.Context, profileID, threadID string) (*protocol.Thread, error) {
	var response resumeResponse
	path := profilePath(profileID, "threads/"+url.PathEscape(threadID)+"/resume")
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &response, true); err != nil {
		return nil, err
	}
	return &response.Thread, nil
}

// SearchThreads returns threads matching query, optionally limited to
// one profile.
func (c *Client) SearchThreads(ctx context.Context, query, profileID string) ([]ThreadSummary, error) {
	values := url.Values{"q": {query}}
	if profileID != "" {
		values.Set("profile", profileID)
	}
	var response threadsResponse
	if err := c.do(ctx, http.MethodGet, "/api/threads/search", values, nil, &response, true); err != nil {
		return nil, err
	}
	return response.Threads, nil
}

// ActiveThreads lists the threads the host remembers as open.
func (c *Client) ActiveThreads(ctx context.Context) ([]ActiveThread, error) {
	var response activeThreadsResponse
	if err := c.do(ctx, http.MethodGet, "/api/threads/active", nil, nil, &response, true); err != nil {
		return nil, err
	}
	return response.Threads, nil
}

// ClearActiveThreads forgets every open thread.
func (c *Client) ClearActiveThreads(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/threads/active", nil, nil, nil, true)
}

func profilePath(profileID, suffix string) string {
	path := "/api/profiles/" + url.PathEscape(profileID)
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

// do performs one request. A nil requestBody sends no body; a nil
// response discards the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, requestBody, response any, authenticated bool) error {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("sidechannel: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return fmt.Errorf("sidechannel: creating request: %w", err)
	}
	request.Header.Set("User-Agent", version.UserAgent())
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if authenticated && c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResponse, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("sidechannel: %s %s: %w", method, path, err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		apiError := &APIError{
			StatusCode: httpResponse.StatusCode,
			Message:    errorMessage(netutil.ErrorBody(httpResponse.Body)),
		}
		c.logger.Debug("side-channel request failed",
			"method", method,
			"path", path,
			"status", apiError.StatusCode,
			"message", apiError.Message,
		)
		return apiError
	}

	if response == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResponse.Body, netutil.MaxResponseSize))
		return nil
	}
	if err := netutil.DecodeResponse(httpResponse.Body, response); err != nil {
		return fmt.Errorf("sidechannel: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// errorMessage extracts the message from an error body: {"error": "..."}
// or {"message": "..."}, or the trimmed raw text.
func errorMessage(body string) string {
	var structured struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(body), &structured) == nil {
		if structured.Error != "" {
			return structured.Error
		}
		if structured.Message != "" {
			return structured.Message
		}
	}
	return strings.TrimSpace(body)
}
