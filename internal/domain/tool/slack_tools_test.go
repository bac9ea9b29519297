package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/openbridge-io/slack-mcp-server/internal/infra/credential"
	"github.com/openbridge-io/slack-mcp-server/internal/infra/slack"
)

// fakeAPI is a canned Slack client recording the arguments it was called with.
type fakeAPI struct {
	lastLimit  int
	lastCursor string

	reactionErr error
}

func (f *fakeAPI) ListChannels(_ context.Context, limit int, cursor string) (*slack.Page, error) {
	f.lastLimit, f.lastCursor = limit, cursor
	return &slack.Page{
		Items:      json.RawMessage(`[{"id":"C1","name":"general"}]`),
		NextCursor: "bmV4dF9wYWdl",
	}, nil
}

func (f *fakeAPI) GetChannelInfo(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"C1","name":"general"}`), nil
}

func (f *fakeAPI) PostMessage(_ context.Context, channelID, text string) (*slack.PostedMessage, error) {
	return &slack.PostedMessage{Channel: channelID, TS: "1503435956.000247"}, nil
}

func (f *fakeAPI) PostThreadReply(_ context.Context, channelID, threadTS, text string) (*slack.PostedMessage, error) {
	return &slack.PostedMessage{Channel: channelID, TS: "1503435957.000300"}, nil
}

func (f *fakeAPI) AddReaction(context.Context, string, string, string) error {
	return f.reactionErr
}

func (f *fakeAPI) GetChannelHistory(_ context.Context, _ string, limit int, cursor string) (*slack.Page, error) {
	f.lastLimit, f.lastCursor = limit, cursor
	return &slack.Page{
		Items:      json.RawMessage(`[{"ts":"1"}]`),
		HasMore:    true,
		NextCursor: "aGlzdG9yeTpuZXh0",
	}, nil
}

func (f *fakeAPI) GetThreadReplies(_ context.Context, _, _, cursor string) (*slack.Page, error) {
	f.lastCursor = cursor
	return &slack.Page{Items: json.RawMessage(`[{"ts":"1"},{"ts":"2"}]`)}, nil
}

func (f *fakeAPI) ListUsers(_ context.Context, limit int, cursor string) (*slack.Page, error) {
	f.lastLimit, f.lastCursor = limit, cursor
	return &slack.Page{Items: json.RawMessage(`[{"id":"U1"}]`)}, nil
}

func (f *fakeAPI) GetUserProfile(context.Context, string) (json.RawMessage, error) {
	return json.RawMessage(`{"real_name":"Ada Lovelace"}`), nil
}

func newTestRegistry(t *testing.T, api API) *Registry {
	t.Helper()

	resolver := credential.NewResolver(credential.Credential{Token: "xoxb-test", TeamID: "T1"}, nil)
	ts := NewSlackToolset(resolver, func(credential.Credential) API { return api })

	r := NewRegistry()
	if err := ts.RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	return r
}

func TestRegisterAll_RegistersEveryTool(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, &fakeAPI{})
	want := []string{
		"get_conversation_info",
		"slack_add_reaction",
		"slack_get_channel_history",
		"slack_get_thread_replies",
		"slack_get_user_profile",
		"slack_get_users",
		"slack_list_channels",
		"slack_post_message",
		"slack_reply_to_thread",
	}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("registered %d tools (%v), want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// Every known tool with a minimal valid argument set must produce a
// successful envelope when the remote succeeds.
func TestDispatch_AllToolsMinimalArgs(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, &fakeAPI{})
	tests := []struct {
		tool string
		args string
	}{
		{"slack_list_channels", `{}`},
		{"get_conversation_info", `{"channel_id":"C1"}`},
		{"slack_post_message", `{"channel_id":"C1","text":"hi"}`},
		{"slack_reply_to_thread", `{"channel_id":"C1","thread_ts":"1.2","text":"hi"}`},
		{"slack_add_reaction", `{"channel_id":"C1","timestamp":"1.2","reaction":"thumbsup"}`},
		{"slack_get_channel_history", `{"channel_id":"C1"}`},
		{"slack_get_thread_replies", `{"channel_id":"C1","thread_ts":"1.2"}`},
		{"slack_get_users", `{}`},
		{"slack_get_user_profile", `{"user_id":"U1"}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.tool, func(t *testing.T) {
			t.Parallel()
			res := r.Dispatch(context.Background(), tt.tool, json.RawMessage(tt.args))
			if !res.OK {
				t.Fatalf("Dispatch(%s) failed: %+v", tt.tool, res.Error)
			}
			if len(res.Payload) == 0 {
				t.Error("successful envelope has no payload")
			}
		})
	}
}

func TestDispatch_ListChannelsPayload(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, &fakeAPI{})
	res := r.Dispatch(context.Background(), "slack_list_channels", json.RawMessage(`{}`))
	if !res.OK {
		t.Fatalf("Dispatch failed: %+v", res.Error)
	}

	var payload struct {
		Channels   []map[string]any `json:"channels"`
		NextCursor string           `json:"next_cursor"`
	}
	if err := json.Unmarshal(res.Payload, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Channels) != 1 || payload.Channels[0]["id"] != "C1" {
		t.Errorf("unexpected channels: %v", payload.Channels)
	}
	if payload.NextCursor != "bmV4dF9wYWdl" {
		t.Errorf("next_cursor = %q", payload.NextCursor)
	}
}

func TestDispatch_PostMessageReturnsTimestamp(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, &fakeAPI{})
	res := r.Dispatch(context.Background(), "slack_post_message",
		json.RawMessage(`{"channel_id":"C123","text":"hello"}`))
	if !res.OK {
		t.Fatalf("Dispatch failed: %+v", res.Error)
	}

	var msg slack.PostedMessage
	if err := json.Unmarshal(res.Payload, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.TS != "1503435956.000247" {
		t.Errorf("ts = %q", msg.TS)
	}
}

// A cursor returned by one history call, fed back unmodified, must reach the
// client verbatim.
func TestDispatch_HistoryCursorRoundTrip(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	r := newTestRegistry(t, api)

	first := r.Dispatch(context.Background(), "slack_get_channel_history",
		json.RawMessage(`{"channel_id":"C1"}`))
	if !first.OK {
		t.Fatalf("first Dispatch failed: %+v", first.Error)
	}
	var page struct {
		NextCursor string `json:"next_cursor"`
	}
	if err := json.Unmarshal(first.Payload, &page); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if page.NextCursor == "" {
		t.Fatal("expected a next_cursor from the first page")
	}

	second := r.Dispatch(context.Background(), "slack_get_channel_history",
		json.RawMessage(`{"channel_id":"C1","cursor":"`+page.NextCursor+`"}`))
	if !second.OK {
		t.Fatalf("second Dispatch failed: %+v", second.Error)
	}
	if api.lastCursor != page.NextCursor {
		t.Errorf("client received cursor %q, want %q forwarded verbatim", api.lastCursor, page.NextCursor)
	}
}

func TestDispatch_MissingRequiredText(t *testing.T) {
	t.Parallel()

	r := newTestRegistry(t, &fakeAPI{})
	res := r.Dispatch(context.Background(), "slack_post_message", json.RawMessage(`{"channel_id":"C1"}`))
	if res.OK {
		t.Fatal("expected unsuccessful envelope")
	}
	if res.Error.Kind != ErrorInvalidArguments || res.Error.Field != "text" {
		t.Errorf("Error = %+v, want invalid_arguments on text", res.Error)
	}
}

func TestDispatch_ReactionRemoteFailure(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{reactionErr: &slack.OperationError{
		Op: "reactions.add", Status: "invalid_name", Message: "slack returned ok=false",
	}}
	r := newTestRegistry(t, api)

	res := r.Dispatch(context.Background(), "slack_add_reaction",
		json.RawMessage(`{"channel_id":"C1","timestamp":"1.2","reaction":"no-such-emoji"}`))
	if res.OK {
		t.Fatal("expected unsuccessful envelope")
	}
	if res.Error.Kind != ErrorRemoteOperation || res.Error.Status != "invalid_name" {
		t.Errorf("Error = %+v, want remote_operation_failed/invalid_name", res.Error)
	}
}

func TestDispatch_CredentialUnavailable(t *testing.T) {
	t.Parallel()

	resolver := credential.NewResolver(credential.Credential{}, nil)
	ts := NewSlackToolset(resolver, func(credential.Credential) API { return &fakeAPI{} })
	r := NewRegistry()
	if err := ts.RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	res := r.Dispatch(context.Background(), "slack_list_channels", json.RawMessage(`{}`))
	if res.OK {
		t.Fatal("expected unsuccessful envelope")
	}
	if res.Error.Kind != ErrorCredentialUnavailable {
		t.Errorf("Kind = %s, want %s", res.Error.Kind, ErrorCredentialUnavailable)
	}
}

func TestDispatch_BrokerErrorSurfacesAsCredentialKind(t *testing.T) {
	t.Parallel()

	broker := brokerFunc(func(context.Context) (string, string, error) {
		return "", "", errors.New("connection refused")
	})
	resolver := credential.NewResolver(credential.Credential{}, broker)
	ts := NewSlackToolset(resolver, func(credential.Credential) API { return &fakeAPI{} })
	r := NewRegistry()
	if err := ts.RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	res := r.Dispatch(context.Background(), "slack_get_users", nil)
	if res.OK || res.Error.Kind != ErrorCredentialUnavailable {
		t.Errorf("expected credential_unavailable envelope, got %+v", res.Error)
	}
}

type brokerFunc func(context.Context) (string, string, error)

func (f brokerFunc) Credentials(ctx context.Context) (string, string, error) { return f(ctx) }
