package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/openbridge-io/slack-mcp-server/internal/infra/credential"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/slack"
)

// API is the contract the toolset needs from the Slack client. Kept as an
// interface so dispatch can be tested with a stub remote.
type API interface {
	ListChannels(ctx context.Context, limit int, cursor string) (*slack.Page, error)
	GetChannelInfo(ctx context.Context, channelID string) (json.RawMessage, error)
	PostMessage(ctx context.Context, channelID, text string) (*slack.PostedMessage, error)
	PostThreadReply(ctx context.Context, channelID, threadTS, text string) (*slack.PostedMessage, error)
	AddReaction(ctx context.Context, channelID, timestamp, name string) error
	GetChannelHistory(ctx context.Context, channelID string, limit int, cursor string) (*slack.Page, error)
	GetThreadReplies(ctx context.Context, channelID, threadTS, cursor string) (*slack.Page, error)
	ListUsers(ctx context.Context, limit int, cursor string) (*slack.Page, error)
	GetUserProfile(ctx context.Context, userID string) (json.RawMessage, error)
}

// Connector builds an API for a resolved credential. The production
// connector constructs a slack.Client; tests substitute a stub.
type Connector func(cred credential.Credential) API

// SlackToolset binds the fixed Slack tool table to a credential resolver
// and a client connector. Credentials are resolved per call so a broker
// connection can rotate tokens underneath a long-lived process.
type SlackToolset struct {
	resolver *credential.Resolver
	connect  Connector
}

// NewSlackToolset creates the toolset.
func NewSlackToolset(resolver *credential.Resolver, connect Connector) *SlackToolset {
	return &SlackToolset{resolver: resolver, connect: connect}
}

// RegisterAll registers every Slack tool descriptor into r.
func (ts *SlackToolset) RegisterAll(r *Registry) error {
	for _, d := range ts.descriptors() {
		if err := r.Register(d); err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}
	return nil
}

// api resolves a credential and connects a client for one call.
func (ts *SlackToolset) api(ctx context.Context) (API, error) {
	cred, err := ts.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return ts.connect(cred), nil
}

type listChannelsArgs struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

type channelIDArgs struct {
	ChannelID string `json:"channel_id"`
}

type postMessageArgs struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type threadReplyArgs struct {
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts"`
	Text      string `json:"text"`
}

type addReactionArgs struct {
	ChannelID string `json:"channel_id"`
	Timestamp string `json:"timestamp"`
	Reaction  string `json:"reaction"`
}

type historyArgs struct {
	ChannelID string `json:"channel_id"`
	Limit     int    `json:"limit"`
	Cursor    string `json:"cursor"`
}

type threadRepliesArgs struct {
	ChannelID string `json:"channel_id"`
	ThreadTS  string `json:"thread_ts"`
	Cursor    string `json:"cursor"`
}

type listUsersArgs struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor"`
}

type userIDArgs struct {
	UserID string `json:"user_id"`
}

func (ts *SlackToolset) descriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "slack_list_channels",
			Description: "List public channels in the workspace with pagination",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"limit":  limitSchema("Maximum number of channels to return (default 100, max 200)"),
				"cursor": cursorSchema(),
			}, nil),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args listChannelsArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				page, err := api.ListChannels(ctx, args.Limit, args.Cursor)
				if err != nil {
					return nil, err
				}
				return marshalPayload(map[string]any{
					"channels":    page.Items,
					"next_cursor": page.NextCursor,
				})
			},
		},
		{
			Name:        "get_conversation_info",
			Description: "Get information about a specific conversation (channel or DM)",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"channel_id": stringSchema("The ID of the channel or conversation"),
			}, []string{"channel_id"}),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args channelIDArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				return api.GetChannelInfo(ctx, args.ChannelID)
			},
		},
		{
			Name:        "slack_post_message",
			Description: "Post a new message to a Slack channel",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"channel_id": stringSchema("The ID of the channel to post to"),
				"text":       stringSchema("The message text to post"),
			}, []string{"channel_id", "text"}),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args postMessageArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				msg, err := api.PostMessage(ctx, args.ChannelID, args.Text)
				if err != nil {
					return nil, err
				}
				return json.Marshal(msg)
			},
		},
		{
			Name:        "slack_reply_to_thread",
			Description: "Reply to a specific message thread in Slack",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"channel_id": stringSchema("The ID of the channel containing the thread"),
				"thread_ts":  stringSchema("The timestamp of the parent message in the format '1234567890.123456'"),
				"text":       stringSchema("The reply text"),
			}, []string{"channel_id", "thread_ts", "text"}),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args threadReplyArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				msg, err := api.PostThreadReply(ctx, args.ChannelID, args.ThreadTS, args.Text)
				if err != nil {
					return nil, err
				}
				return json.Marshal(msg)
			},
		},
		{
			Name:        "slack_add_reaction",
			Description: "Add a reaction emoji to a message",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"channel_id": stringSchema("The ID of the channel containing the message"),
				"timestamp":  stringSchema("The timestamp of the message to react to"),
				"reaction":   stringSchema("The name of the emoji reaction (without colons)"),
			}, []string{"channel_id", "timestamp", "reaction"}),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args addReactionArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				if err := api.AddReaction(ctx, args.ChannelID, args.Timestamp, args.Reaction); err != nil {
					return nil, err
				}
				return marshalPayload(map[string]any{
					"channel":   args.ChannelID,
					"timestamp": args.Timestamp,
					"reaction":  args.Reaction,
				})
			},
		},
		{
			Name:        "slack_get_channel_history",
			Description: "Get recent messages from a channel",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"channel_id": stringSchema("The ID of the channel"),
				"limit":      limitSchema("Number of messages to retrieve (default 10, max 200)"),
				"cursor":     cursorSchema(),
			}, []string{"channel_id"}),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args historyArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				page, err := api.GetChannelHistory(ctx, args.ChannelID, args.Limit, args.Cursor)
				if err != nil {
					return nil, err
				}
				return marshalPayload(map[string]any{
					"messages":    page.Items,
					"has_more":    page.HasMore,
					"next_cursor": page.NextCursor,
				})
			},
		},
		{
			Name:        "slack_get_thread_replies",
			Description: "Get all replies in a message thread",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"channel_id": stringSchema("The ID of the channel containing the thread"),
				"thread_ts":  stringSchema("The timestamp of the parent message in the format '1234567890.123456'"),
				"cursor":     cursorSchema(),
			}, []string{"channel_id", "thread_ts"}),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args threadRepliesArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				page, err := api.GetThreadReplies(ctx, args.ChannelID, args.ThreadTS, args.Cursor)
				if err != nil {
					return nil, err
				}
				return marshalPayload(map[string]any{
					"messages":    page.Items,
					"has_more":    page.HasMore,
					"next_cursor": page.NextCursor,
				})
			},
		},
		{
			Name:        "slack_get_users",
			Description: "Get a list of all users in the workspace with their basic profile information",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"limit":  limitSchema("Maximum number of users to return (default 100, max 200)"),
				"cursor": cursorSchema(),
			}, nil),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args listUsersArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				page, err := api.ListUsers(ctx, args.Limit, args.Cursor)
				if err != nil {
					return nil, err
				}
				return marshalPayload(map[string]any{
					"members":     page.Items,
					"next_cursor": page.NextCursor,
				})
			},
		},
		{
			Name:        "slack_get_user_profile",
			Description: "Get detailed profile information for a specific user",
			InputSchema: objectSchema(map[string]*jsonschema.Schema{
				"user_id": stringSchema("The ID of the user"),
			}, []string{"user_id"}),
			Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
				var args userIDArgs
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, err
				}
				api, err := ts.api(ctx)
				if err != nil {
					return nil, err
				}
				return api.GetUserProfile(ctx, args.UserID)
			},
		},
	}
}

// ─── schema helpers ─────────────────────────────────────────────────────────

func objectSchema(props map[string]*jsonschema.Schema, required []string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func stringSchema(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

func cursorSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: "Pagination cursor for next page of results"}
}

func limitSchema(description string) *jsonschema.Schema {
	min := 1.0
	return &jsonschema.Schema{Type: "integer", Description: description, Minimum: &min}
}

func marshalPayload(v map[string]any) (json.RawMessage, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return out, nil
}
