package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hushh/voicegate/internal/domain"
)

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zerolog.Nop())
	res := reg.Dispatch(context.Background(), "no_such_tool", nil, Context{})
	assert.False(t, res.OK)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeUnknownTool, res.Err.Code)
}

func TestRegistry_DispatchRecoversPanic(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zerolog.Nop())
	require.NoError(t, reg.Register(Spec{
		Name:        "boom",
		Parameters:  json.RawMessage(`{}`),
		ActionLevel: ActionRead,
		Handler: func(context.Context, json.RawMessage, Context) Result {
			panic("handler bug")
		},
	}))

	res := reg.Dispatch(context.Background(), "boom", nil, Context{})
	assert.False(t, res.OK)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeToolError, res.Err.Code)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, json.RawMessage, Context) Result { return Ok(nil) }

	reg := NewRegistry(zerolog.Nop())
	assert.Error(t, reg.Register(Spec{Name: "", ActionLevel: ActionRead, Handler: noop}))
	assert.Error(t, reg.Register(Spec{Name: "x", ActionLevel: ActionRead, Handler: nil}))
	assert.Error(t, reg.Register(Spec{Name: "x", ActionLevel: "delete", Handler: noop}))
	assert.NoError(t, reg.Register(Spec{Name: "x", ActionLevel: ActionWrite, Handler: noop}))

	level, ok := reg.ActionLevel("x")
	assert.True(t, ok)
	assert.Equal(t, ActionWrite, level)
	_, ok = reg.ActionLevel("y")
	assert.False(t, ok)
}

func TestRegistry_SpecsSorted(t *testing.T) {
	t.Parallel()

	noop := func(context.Context, json.RawMessage, Context) Result { return Ok(nil) }

	reg := NewRegistry(zerolog.Nop())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(Spec{
			Name:        name,
			Parameters:  json.RawMessage(`{"type":"object"}`),
			ActionLevel: ActionRead,
			Handler:     noop,
		}))
	}

	defs := reg.Specs()
	require.Len(t, defs, 3)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "mid", defs[1].Name)
	assert.Equal(t, "zeta", defs[2].Name)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}

func TestMailTools_MissingToken(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zerolog.Nop())
	require.NoError(t, RegisterMail(reg, nil, nil, nil))

	for _, name := range []string{"gmail_search", "gmail_send", "gmail_draft_reply"} {
		res := reg.Dispatch(context.Background(), name, json.RawMessage(`{}`), Context{})
		assert.False(t, res.OK, name)
		require.NotNil(t, res.Err, name)
		assert.Equal(t, CodeMissingGoogleToken, res.Err.Code, name)
	}
}

func TestGmailSend_RequiresFields(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(zerolog.Nop())
	require.NoError(t, RegisterMail(reg, nil, nil, nil))

	tc := Context{GoogleToken: "tok"}
	res := reg.Dispatch(context.Background(), "gmail_send", json.RawMessage(`{"to":"a@example.com"}`), tc)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeInvalidArguments, res.Err.Code)

	res = reg.Dispatch(context.Background(), "gmail_send",
		json.RawMessage(`{"to":"not-an-address","subject":"s","body":"b"}`), tc)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeInvalidEmail, res.Err.Code)
}

func TestCleanRecipients(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare address", in: "ada@example.com", want: "ada@example.com"},
		{name: "angle form", in: "Ada Lovelace <ada@example.com>", want: "ada@example.com"},
		{name: "list with spaces", in: " a@x.com ,  b@y.org ", want: "a@x.com, b@y.org"},
		{name: "mixed forms", in: "a@x.com, B <b@y.org>", want: "a@x.com, b@y.org"},
		{name: "empty is allowed", in: "", want: ""},
		{name: "invalid address", in: "nope", wantErr: true},
		{name: "one bad in list", in: "a@x.com, nope", wantErr: true},
		{name: "only commas", in: ",,", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := cleanRecipients(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeMailReader struct {
	msgs []*domain.CachedMessage
}

func (f *fakeMailReader) Messages(context.Context, uuid.UUID, string, string, int) ([]*domain.CachedMessage, error) {
	return f.msgs, nil
}

func TestGmailSearch_TokenANDFilter(t *testing.T) {
	t.Parallel()

	reader := &fakeMailReader{msgs: []*domain.CachedMessage{
		{ProviderID: "m1", FromName: "Jane Roe", FromEmail: "jane@example.com", Subject: "Budget numbers", Snippet: "Q3 draft attached"},
		{ProviderID: "m2", FromName: "Sam Cho", FromEmail: "sam@example.com", Subject: "Lunch", Snippet: "tacos?"},
	}}
	reg := NewRegistry(zerolog.Nop())
	require.NoError(t, RegisterMail(reg, reader, nil, nil))

	res := reg.Dispatch(context.Background(), "gmail_search",
		json.RawMessage(`{"query":"jane budget"}`), Context{GoogleToken: "tok"})
	require.True(t, res.OK, res.Err)

	var out struct {
		Messages []messageView `json:"messages"`
		Count    int           `json:"count"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "m1", out.Messages[0].ID)

	// One non-matching token rejects the message.
	res = reg.Dispatch(context.Background(), "gmail_search",
		json.RawMessage(`{"query":"jane tacos"}`), Context{GoogleToken: "tok"})
	require.True(t, res.OK)
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Equal(t, 0, out.Count)
}
