package persona

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codesoul/internal/llm"
	"github.com/dshills/codesoul/pkg/types"
)

type fakeClient struct {
	reply   string
	err     error
	calls   int
	lastMsg []llm.Message
}

func (f *fakeClient) Available() bool { return true }

func (f *fakeClient) Complete(_ context.Context, msgs []llm.Message, _ ...llm.CallOption) (string, error) {
	f.calls++
	f.lastMsg = msgs
	return f.reply, f.err
}

func (f *fakeClient) Stream(context.Context, []llm.Message, ...llm.CallOption) iter.Seq2[string, error] {
	return func(func(string, error) bool) {}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		count int
		want  types.Tier
	}{
		{0, types.TierReserved},
		{10, types.TierReserved},
		{49, types.TierReserved},
		{50, types.TierEnergetic},
		{499, types.TierEnergetic},
		{500, types.TierWeary},
		{100000, types.TierWeary},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.count), "count=%d", tt.count)
	}
}

func TestInitialize_Generated(t *testing.T) {
	client := &fakeClient{reply: `{"name":"Zed","description":"A busy little repo","style":"Fast talker"}`}
	in := NewInitializer(client, zerolog.Nop())

	p := in.Initialize(context.Background(), types.IndexStats{Count: 120})

	assert.Equal(t, "Zed", p.Name)
	assert.Equal(t, types.TierEnergetic, p.Tier)
	assert.False(t, p.Scripted)
	assert.Contains(t, p.SystemPrompt, "You are the living soul of this codebase.")
	assert.Contains(t, p.SystemPrompt, "Name: Zed\nDescription: A busy little repo\nStyle: Fast talker")

	require.Len(t, client.lastMsg, 1)
	assert.Contains(t, client.lastMsg[0].Content, "120 code chunks")
	assert.Contains(t, client.lastMsg[0].Content, `"energetic"`)
}

func TestInitialize_FallsBack(t *testing.T) {
	tests := []struct {
		name   string
		client llm.Client
		count  int
		tier   types.Tier
	}{
		{"no credential", llm.Unavailable{}, 10, types.TierReserved},
		{"nil client", nil, 499, types.TierEnergetic},
		{"transport error", &fakeClient{err: errors.New("timeout")}, 500, types.TierWeary},
		{"not json", &fakeClient{reply: "I am a persona"}, 10, types.TierReserved},
		{"missing key", &fakeClient{reply: `{"name":"X","description":"Y"}`}, 60, types.TierEnergetic},
		{"wrong type", &fakeClient{reply: `{"name":"X","description":"Y","style":["a"]}`}, 60, types.TierEnergetic},
		{"empty value", &fakeClient{reply: `{"name":"","description":"Y","style":"Z"}`}, 900, types.TierWeary},
		{"blank value", &fakeClient{reply: `{"name":"  ","description":"Y","style":"\t\n"}`}, 10, types.TierReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewInitializer(tt.client, zerolog.Nop()).Initialize(context.Background(), types.IndexStats{Count: tt.count})
			assert.True(t, p.Scripted)
			assert.Equal(t, tt.tier, p.Tier)
			assert.Equal(t, Scripted(tt.tier), p)
			assert.NotEmpty(t, p.SystemPrompt)
		})
	}
}

func TestParse_RejectsBlankFields(t *testing.T) {
	for _, field := range []string{"name", "description", "style"} {
		t.Run(field, func(t *testing.T) {
			raw := map[string]string{"name": "N", "description": "D", "style": "S"}
			raw[field] = "   "
			payload, err := json.Marshal(raw)
			require.NoError(t, err)

			_, err = Parse(string(payload))
			require.Error(t, err)
			assert.Contains(t, err.Error(), field)
		})
	}
}

func TestParse_StripsFences(t *testing.T) {
	p, err := Parse("```json\n{\"name\":\" Old One \",\"description\":\"d\",\"style\":\"s\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Old One", p.Name)
}

func TestScripted_Deterministic(t *testing.T) {
	a := Scripted(types.TierWeary)
	b := Scripted(types.TierWeary)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Name, Scripted(types.TierReserved).Name)

	unknown := Scripted(types.Tier("bogus"))
	assert.Equal(t, types.TierReserved, unknown.Tier)
}
