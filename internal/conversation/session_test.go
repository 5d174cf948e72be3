package conversation

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStateRoundTrip(t *testing.T) {
	for _, state := range []State{Idle, AwaitingClarification, HandoffComplete} {
		got, err := ParseState(state.String())
		require.NoError(t, err)
		assert.Equal(t, state, got)
	}

	got, err := ParseState("")
	require.NoError(t, err)
	assert.Equal(t, Idle, got)

	_, err = ParseState("banana")
	assert.Error(t, err)
}

func TestSessionAppendDropsEmpty(t *testing.T) {
	sess := NewSession("s1")

	added := sess.Append(
		schema.UserMessage("hello"),
		nil,
		&schema.Message{Role: schema.Assistant},
		&schema.Message{Role: schema.Tool, ToolCallID: "call_0", Content: "result"},
	)
	require.Len(t, added, 2)
	assert.Len(t, sess.Messages, 2)
	assert.Equal(t, schema.User, sess.Messages[0].Role)
	assert.Equal(t, schema.Tool, sess.Messages[1].Role)
}

func TestSessionAppendKeepsToolCallShells(t *testing.T) {
	sess := NewSession("s1")
	msg := &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "call_0", Function: schema.FunctionCall{Name: "query_internal_kb"}},
		},
	}
	added := sess.Append(msg)
	require.Len(t, added, 1)
	assert.Same(t, msg, sess.Messages[0])
}

func TestLastUserTexts(t *testing.T) {
	sess := NewSession("s1")
	sess.Append(
		schema.UserMessage("first"),
		schema.AssistantMessage("reply one", nil),
		schema.UserMessage("second"),
		schema.AssistantMessage("reply two", nil),
		schema.UserMessage("third"),
		schema.UserMessage("fourth"),
	)

	assert.Equal(t, []string{"second", "third", "fourth"}, sess.LastUserTexts(3))
	assert.Equal(t, []string{"fourth"}, sess.LastUserTexts(1))
	assert.Empty(t, NewSession("empty").LastUserTexts(3))
}

func TestManagerAcquireIsolatesSessions(t *testing.T) {
	m := NewManager(nil)
	ctx := context.Background()

	a, releaseA, err := m.Acquire(ctx, "a")
	require.NoError(t, err)
	a.Append(schema.UserMessage("from a"))
	releaseA()

	b, releaseB, err := m.Acquire(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, b.Messages)
	releaseB()

	again, release, err := m.Acquire(ctx, "a")
	require.NoError(t, err)
	defer release()
	require.Len(t, again.Messages, 1)
	assert.Equal(t, "from a", again.Messages[0].Content)
}

// fakeRepo records repository calls for persistence assertions.
type fakeRepo struct {
	added  map[string][]*schema.Message
	states map[string]State
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{added: map[string][]*schema.Message{}, states: map[string]State{}}
}

func (f *fakeRepo) AddMessage(_ context.Context, sessionID string, msg *schema.Message) error {
	f.added[sessionID] = append(f.added[sessionID], msg)
	return nil
}

func (f *fakeRepo) LoadHistory(_ context.Context, sessionID string) (*History, error) {
	return &History{
		SessionID: sessionID,
		State:     f.states[sessionID],
		Messages:  f.added[sessionID],
	}, nil
}

func (f *fakeRepo) SaveState(_ context.Context, sessionID string, state State) error {
	f.states[sessionID] = state
	return nil
}

func (f *fakeRepo) ClearHistory(_ context.Context, sessionID string) error {
	delete(f.added, sessionID)
	delete(f.states, sessionID)
	return nil
}

func (f *fakeRepo) GetMessageCount(_ context.Context, sessionID string) (int, error) {
	return len(f.added[sessionID]), nil
}

func TestManagerPersistAndReload(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()

	m := NewManager(repo)
	sess, release, err := m.Acquire(ctx, "s1")
	require.NoError(t, err)
	added := sess.Append(schema.UserMessage("hello"), schema.AssistantMessage("hi there", nil))
	sess.State = AwaitingClarification
	require.NoError(t, m.Persist(ctx, sess, added))
	release()

	// A fresh manager simulates a process restart against the same store.
	m2 := NewManager(repo)
	reloaded, release2, err := m2.Acquire(ctx, "s1")
	require.NoError(t, err)
	defer release2()
	assert.Equal(t, AwaitingClarification, reloaded.State)
	require.Len(t, reloaded.Messages, 2)
	assert.Equal(t, "hello", reloaded.Messages[0].Content)
}

func TestManagerReset(t *testing.T) {
	repo := newFakeRepo()
	ctx := context.Background()
	m := NewManager(repo)

	sess, release, err := m.Acquire(ctx, "s1")
	require.NoError(t, err)
	added := sess.Append(schema.UserMessage("hello"))
	require.NoError(t, m.Persist(ctx, sess, added))
	release()

	require.NoError(t, m.Reset(ctx, "s1"))

	fresh, release2, err := m.Acquire(ctx, "s1")
	require.NoError(t, err)
	defer release2()
	assert.Empty(t, fresh.Messages)
	assert.Equal(t, Idle, fresh.State)
}
