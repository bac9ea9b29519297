// Package slack wraps the handful of Slack Web API endpoints the adapter
// exposes as tools. Each method builds one authenticated HTTP request,
// decodes the JSON body and maps ok:false or a non-2xx status into an
// *OperationError. The client holds no mutable state, so one instance may
// serve concurrent calls.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the production Slack Web API endpoint.
	DefaultBaseURL = "https://slack.com/api"

	// MaxPageSize is the largest page the adapter will request from any
	// paginated endpoint. Larger caller-supplied limits are clamped here,
	// never forwarded verbatim.
	MaxPageSize = 200

	// DefaultListLimit is the page size used when a listing call supplies
	// no limit.
	DefaultListLimit = 100

	// DefaultHistoryLimit is the page size used when a history call
	// supplies no limit.
	DefaultHistoryLimit = 10

	mimeJSON          = "application/json"
	headerContentType = "Content-Type"
	headerAuth        = "Authorization"
	headerRetryAfter  = "Retry-After"

	maxRateLimitRetries = 2
	maxRetryAfterWait   = 30 * time.Second
	defaultRetryWait    = time.Second
)

// ErrRemoteOperation is wrapped by every failure originating upstream.
var ErrRemoteOperation = errors.New("slack remote operation failed")

// OperationError reports a failed Slack Web API call. Status holds either
// the HTTP status code, the Slack error token from an ok:false body, or
// "timeout" when the call exceeded its deadline.
type OperationError struct {
	Op      string
	Status  string
	Message string
}

func (e *OperationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("slack %s: %s", e.Op, e.Status)
	}
	return fmt.Sprintf("slack %s: %s: %s", e.Op, e.Status, e.Message)
}

func (e *OperationError) Unwrap() error { return ErrRemoteOperation }

// HTTPClient is the minimal contract needed from an *http.Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client issues authenticated calls against the Slack Web API.
type Client struct {
	baseURL string
	token   string
	teamID  string
	c       HTTPClient

	// sleep is swapped out in tests to avoid real rate-limit waits.
	sleep func(context.Context, time.Duration) error
}

// New creates a Client for the given workspace. baseURL is usually
// DefaultBaseURL; tests point it at an httptest server. timeout bounds every
// outbound call so a slow remote cannot stall the adapter.
func New(baseURL, token, teamID string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		teamID:  teamID,
		c:       &http.Client{Timeout: timeout},
		sleep:   sleepCtx,
	}
}

// ListChannels returns one page of non-archived public channels.
// A zero limit means DefaultListLimit; an empty cursor means the first page.
func (c *Client) ListChannels(ctx context.Context, limit int, cursor string) (*Page, error) {
	q := url.Values{
		"types":            {"public_channel"},
		"exclude_archived": {"true"},
		"limit":            {strconv.Itoa(clampLimit(limit, DefaultListLimit))},
		"team_id":          {c.teamID},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	env, err := c.call(ctx, "conversations.list", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      orEmptyArray(env.Channels),
		NextCursor: env.ResponseMetadata.NextCursor,
	}, nil
}

// GetChannelInfo returns the channel object for channelID. A missing or
// archived channel is an operation failure, mirroring how the adapter has
// always reported it to hosts.
func (c *Client) GetChannelInfo(ctx context.Context, channelID string) (json.RawMessage, error) {
	q := url.Values{"channel": {channelID}}

	env, err := c.call(ctx, "conversations.info", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}

	var info channelInfo
	if len(env.Channel) == 0 || json.Unmarshal(env.Channel, &info) != nil || info.IsArchived {
		return nil, &OperationError{
			Op:      "conversations.info",
			Status:  "not_found",
			Message: "channel not found or is archived",
		}
	}
	return env.Channel, nil
}

// PostMessage posts text to a channel and returns the created message.
func (c *Client) PostMessage(ctx context.Context, channelID, text string) (*PostedMessage, error) {
	body := map[string]string{
		"channel": channelID,
		"text":    text,
	}
	env, err := c.call(ctx, "chat.postMessage", http.MethodPost, nil, body)
	if err != nil {
		return nil, err
	}
	return &PostedMessage{Channel: channelID, TS: env.TS, Message: env.Message}, nil
}

// PostThreadReply posts text as a reply inside the thread rooted at threadTS.
func (c *Client) PostThreadReply(ctx context.Context, channelID, threadTS, text string) (*PostedMessage, error) {
	body := map[string]string{
		"channel":   channelID,
		"thread_ts": threadTS,
		"text":      text,
	}
	env, err := c.call(ctx, "chat.postMessage", http.MethodPost, nil, body)
	if err != nil {
		return nil, err
	}
	return &PostedMessage{Channel: channelID, TS: env.TS, Message: env.Message}, nil
}

// AddReaction adds the named emoji reaction to the message at timestamp.
func (c *Client) AddReaction(ctx context.Context, channelID, timestamp, name string) error {
	body := map[string]string{
		"channel":   channelID,
		"timestamp": timestamp,
		"name":      name,
	}
	_, err := c.call(ctx, "reactions.add", http.MethodPost, nil, body)
	return err
}

// GetChannelHistory returns one page of recent messages from a channel,
// newest first. A zero limit means DefaultHistoryLimit.
func (c *Client) GetChannelHistory(ctx context.Context, channelID string, limit int, cursor string) (*Page, error) {
	q := url.Values{
		"channel": {channelID},
		"limit":   {strconv.Itoa(clampLimit(limit, DefaultHistoryLimit))},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	env, err := c.call(ctx, "conversations.history", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      orEmptyArray(env.Messages),
		HasMore:    env.HasMore,
		NextCursor: env.ResponseMetadata.NextCursor,
	}, nil
}

// GetThreadReplies returns the messages in the thread rooted at threadTS.
func (c *Client) GetThreadReplies(ctx context.Context, channelID, threadTS, cursor string) (*Page, error) {
	q := url.Values{
		"channel": {channelID},
		"ts":      {threadTS},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	env, err := c.call(ctx, "conversations.replies", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      orEmptyArray(env.Messages),
		HasMore:    env.HasMore,
		NextCursor: env.ResponseMetadata.NextCursor,
	}, nil
}

// ListUsers returns one page of workspace members.
func (c *Client) ListUsers(ctx context.Context, limit int, cursor string) (*Page, error) {
	q := url.Values{
		"limit":   {strconv.Itoa(clampLimit(limit, DefaultListLimit))},
		"team_id": {c.teamID},
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	env, err := c.call(ctx, "users.list", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	return &Page{
		Items:      orEmptyArray(env.Members),
		NextCursor: env.ResponseMetadata.NextCursor,
	}, nil
}

// GetUserProfile returns the profile object for userID, including labels.
func (c *Client) GetUserProfile(ctx context.Context, userID string) (json.RawMessage, error) {
	q := url.Values{
		"user":           {userID},
		"include_labels": {"true"},
	}

	env, err := c.call(ctx, "users.profile.get", http.MethodGet, q, nil)
	if err != nil {
		return nil, err
	}
	return env.Profile, nil
}

// call performs one Slack Web API request, retrying a bounded number of
// times on HTTP 429. The request is rebuilt per attempt so the body can be
// replayed.
func (c *Client) call(ctx context.Context, op, method string, q url.Values, body any) (*apiEnvelope, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("slack %s: encode body: %w", op, err)
		}
	}

	for attempt := 0; ; attempt++ {
		env, retryAfter, err := c.doOnce(ctx, op, method, q, payload)
		if err == nil {
			return env, nil
		}
		if retryAfter <= 0 || attempt >= maxRateLimitRetries {
			return nil, err
		}
		if sleepErr := c.sleep(ctx, retryAfter); sleepErr != nil {
			return nil, &OperationError{Op: op, Status: "timeout", Message: sleepErr.Error()}
		}
	}
}

// doOnce issues a single attempt. A positive retryAfter alongside the error
// signals a rate-limited response that may be retried.
func (c *Client) doOnce(ctx context.Context, op, method string, q url.Values, payload []byte) (*apiEnvelope, time.Duration, error) {
	endpoint := c.baseURL + "/" + op
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var reqBody *bytes.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("slack %s: build request: %w", op, err)
	}
	req.Header.Set(headerAuth, "Bearer "+c.token)
	req.Header.Set(headerContentType, mimeJSON)

	resp, err := c.c.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, 0, &OperationError{Op: op, Status: "timeout", Message: err.Error()}
		}
		return nil, 0, &OperationError{Op: op, Status: "transport_error", Message: err.Error()}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfterWait(resp.Header.Get(headerRetryAfter))
		return nil, wait, &OperationError{Op: op, Status: "429", Message: "rate limited"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, &OperationError{Op: op, Status: strconv.Itoa(resp.StatusCode), Message: resp.Status}
	}

	var env apiEnvelope
	if decodeErr := json.NewDecoder(resp.Body).Decode(&env); decodeErr != nil {
		return nil, 0, &OperationError{Op: op, Status: "invalid_json", Message: decodeErr.Error()}
	}
	if !env.OK {
		return nil, 0, &OperationError{Op: op, Status: env.Error, Message: "slack returned ok=false"}
	}
	return &env, 0, nil
}

// clampLimit applies the default for non-positive limits and caps the rest
// at MaxPageSize.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// retryAfterWait parses a Retry-After header in either of its two forms,
// delay-seconds or HTTP-date, capped at maxRetryAfterWait. Anything
// unparseable falls back to defaultRetryWait.
func retryAfterWait(header string) time.Duration {
	header = strings.TrimSpace(header)
	wait := defaultRetryWait
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		wait = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(header); err == nil {
		if until := time.Until(at); until > 0 {
			wait = until
		}
	}
	if wait > maxRetryAfterWait {
		wait = maxRetryAfterWait
	}
	return wait
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func orEmptyArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`[]`)
	}
	return raw
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
