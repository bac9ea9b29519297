package slack

import "encoding/json"

// Page is one page of a cursor-paginated Slack listing. Items is the raw
// JSON array exactly as Slack returned it; NextCursor is forwarded verbatim
// by the caller to fetch the following page (empty means last page).
type Page struct {
	Items      json.RawMessage `json:"items"`
	HasMore    bool            `json:"has_more,omitempty"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// PostedMessage describes a message accepted by chat.postMessage.
type PostedMessage struct {
	Channel string          `json:"channel"`
	TS      string          `json:"ts"`
	Message json.RawMessage `json:"message,omitempty"`
}

// apiEnvelope is the union of fields the adapter reads from Slack Web API
// responses. Every endpoint sets ok, and error when ok is false; the rest
// are populated per endpoint and passed through untouched.
type apiEnvelope struct {
	OK       bool            `json:"ok"`
	Error    string          `json:"error"`
	Channels json.RawMessage `json:"channels"`
	Channel  json.RawMessage `json:"channel"`
	Members  json.RawMessage `json:"members"`
	Messages json.RawMessage `json:"messages"`
	Profile  json.RawMessage `json:"profile"`
	Message  json.RawMessage `json:"message"`
	TS       string          `json:"ts"`
	HasMore  bool            `json:"has_more"`

	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

// channelInfo is the subset of a channel object the client inspects itself.
type channelInfo struct {
	IsArchived bool `json:"is_archived"`
}
