// Package nango is a minimal client for the Nango credential broker. The
// adapter only needs one endpoint: fetch a connection and pull the Slack
// bot token and team id out of it. Token refresh is Nango's job, which is
// why the connection is requested with refresh_token=true on every call.
package nango

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient is the minimal contract needed from an *http.Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client fetches connection credentials from a Nango instance.
type Client struct {
	baseURL       string
	secretKey     string
	connectionID  string
	integrationID string
	c             HTTPClient
}

// New creates a Client against the given Nango base URL. The secret key
// authenticates the adapter to Nango; connectionID and integrationID select
// the Slack connection to resolve.
func New(baseURL, secretKey, connectionID, integrationID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		secretKey:     secretKey,
		connectionID:  connectionID,
		integrationID: integrationID,
		c:             &http.Client{Timeout: timeout},
	}
}

// connectionResponse is the slice of Nango's connection object the adapter
// reads. connection_config carries the Slack team id under the literal key
// "team.id".
type connectionResponse struct {
	Credentials struct {
		AccessToken string `json:"access_token"`
	} `json:"credentials"`
	ConnectionConfig map[string]any `json:"connection_config"`
}

// Credentials fetches the connection and returns the Slack bot token and
// team id. An unreachable broker, a non-2xx status or a response without an
// access token are all errors.
func (c *Client) Credentials(ctx context.Context) (token, teamID string, err error) {
	q := url.Values{
		"provider_config_key": {c.integrationID},
		"refresh_token":       {"true"},
	}
	endpoint := c.baseURL + "/connection/" + url.PathEscape(c.connectionID) + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "", fmt.Errorf("nango: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.c.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("nango: fetch connection %q: %w", c.connectionID, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("nango: fetch connection %q: status %d", c.connectionID, resp.StatusCode)
	}

	var conn connectionResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&conn); decodeErr != nil {
		return "", "", fmt.Errorf("nango: decode connection response: %w", decodeErr)
	}
	if conn.Credentials.AccessToken == "" {
		return "", "", fmt.Errorf("nango: connection %q has no access token", c.connectionID)
	}

	if v, ok := conn.ConnectionConfig["team.id"].(string); ok {
		teamID = v
	}
	return conn.Credentials.AccessToken, teamID, nil
}
