package fleetapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rideline/telemetry-service/config"
	"github.com/rideline/telemetry-service/internal/metrics"
)

// ErrUnauthorized indicates the provider rejected our token; the cached token
// has already been invalidated and the call is safe to retry.
var ErrUnauthorized = errors.New("fleet api: unauthorized")

// Client talks to the external fleet tracking provider
type Client struct {
	baseURL   string
	accountID string
	secretKey string
	http      *http.Client
	tokens    *TokenManager
	log       *logrus.Logger
}

// NewClient creates a fleet API client with a timeout-bounded HTTP client
func NewClient(cfg *config.FleetAPIConfig, log *logrus.Logger) *Client {
	c := &Client{
		baseURL:   cfg.BaseURL,
		accountID: cfg.AccountID,
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: cfg.Timeout},
		log:       log,
	}
	c.tokens = NewTokenManager(c.requestToken)
	return c
}

// Tokens exposes the credential manager, mainly for tests
func (c *Client) Tokens() *TokenManager {
	return c.tokens
}

// tokenResponse is the provider's token endpoint payload
type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// requestToken performs the blocking authenticate call
func (c *Client) requestToken(ctx context.Context) (string, time.Time, error) {
	start := time.Now()
	collector := metrics.GetCollector()

	body, err := json.Marshal(map[string]string{
		"accountId": c.accountID,
		"secretKey": c.secretKey,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		collector.RecordFleetAPICall(metrics.FleetAPIOperationAuth, false, time.Since(start))
		return "", time.Time{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		collector.RecordFleetAPICall(metrics.FleetAPIOperationAuth, false, time.Since(start))
		return "", time.Time{}, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		collector.RecordFleetAPICall(metrics.FleetAPIOperationAuth, false, time.Since(start))
		return "", time.Time{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		collector.RecordFleetAPICall(metrics.FleetAPIOperationAuth, false, time.Since(start))
		return "", time.Time{}, errors.New("token endpoint returned an empty token")
	}

	collector.RecordFleetAPICall(metrics.FleetAPIOperationAuth, true, time.Since(start))
	return tr.AccessToken, time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second), nil
}

// rosterResponse wraps the provider's roster payloads
type rosterResponse struct {
	Data []map[string]interface{} `json:"data"`
}

// FetchVehicles fetches the full vehicle roster
func (c *Client) FetchVehicles(ctx context.Context) ([]map[string]interface{}, error) {
	return c.fetchRoster(ctx, "/vehicles/list", metrics.FleetAPIOperationVehicles)
}

// FetchDrivers fetches the full driver roster
func (c *Client) FetchDrivers(ctx context.Context) ([]map[string]interface{}, error) {
	return c.fetchRoster(ctx, "/drivers/list", metrics.FleetAPIOperationDrivers)
}

// fetchRoster performs an authenticated roster call. Provider roster
// endpoints are POST with an empty body. A 401 invalidates the cached token
// and returns ErrUnauthorized so the caller can retry.
func (c *Client) fetchRoster(ctx context.Context, path, operation string) ([]map[string]interface{}, error) {
	start := time.Now()
	collector := metrics.GetCollector()

	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain fleet api token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build roster request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		collector.RecordFleetAPICall(operation, false, time.Since(start))
		return nil, fmt.Errorf("roster request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
		collector.RecordFleetAPICall(operation, false, time.Since(start))
		return nil, fmt.Errorf("roster request %s: %w", path, ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		collector.RecordFleetAPICall(operation, false, time.Since(start))
		return nil, fmt.Errorf("roster request %s returned %d", path, resp.StatusCode)
	}

	var rr rosterResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		collector.RecordFleetAPICall(operation, false, time.Since(start))
		return nil, fmt.Errorf("failed to decode roster response: %w", err)
	}

	collector.RecordFleetAPICall(operation, true, time.Since(start))
	return rr.Data, nil
}
