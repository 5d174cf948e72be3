package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns canned vectors keyed by exact text.
type stubEmbedder struct {
	vectors map[string][]float64
}

func (s stubEmbedder) EmbedStrings(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := s.vectors[t]
		if !ok {
			v = []float64{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func TestStoreAddAndSearchPerSession(t *testing.T) {
	embedder := stubEmbedder{vectors: map[string][]float64{
		"tax question":  {1, 0, 0},
		"visa question": {0, 1, 0},
		"tax":           {1, 0, 0},
		"other session": {1, 0, 0},
	}}
	store := NewStore(embedder, 0)
	ctx := context.Background()

	_, err := store.Add(ctx, "s1", "user", "tax question", AddOptions{})
	require.NoError(t, err)
	_, err = store.Add(ctx, "s1", "user", "visa question", AddOptions{})
	require.NoError(t, err)
	_, err = store.Add(ctx, "s2", "user", "other session", AddOptions{})
	require.NoError(t, err)

	items, err := store.Search(ctx, "s1", "tax", 5)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "tax question", items[0].Text)
	for _, item := range items {
		assert.Equal(t, "s1", item.SessionID)
	}
}

func TestStoreTurnIndexAssignment(t *testing.T) {
	store := NewStore(stubEmbedder{}, 0)
	ctx := context.Background()

	first, err := store.Add(ctx, "s1", "user", "one", AddOptions{})
	require.NoError(t, err)
	second, err := store.Add(ctx, "s1", "user", "two", AddOptions{})
	require.NoError(t, err)
	pinned, err := store.Add(ctx, "s1", "user", "ten", AddOptions{TurnIndex: 10, HasTurnIndex: true})
	require.NoError(t, err)
	after, err := store.Add(ctx, "s1", "user", "eleven", AddOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, first.TurnIndex)
	assert.Equal(t, 1, second.TurnIndex)
	assert.Equal(t, 10, pinned.TurnIndex)
	assert.Equal(t, 11, after.TurnIndex)
}

func TestStorePruneKeepsNewest(t *testing.T) {
	store := NewStore(stubEmbedder{}, 2)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := store.Add(ctx, "s1", "user", text, AddOptions{})
		require.NoError(t, err)
	}
	_, err := store.Add(ctx, "s2", "user", "untouched", AddOptions{})
	require.NoError(t, err)

	items, err := store.Search(ctx, "s1", "anything", 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	indexes := []int{items[0].TurnIndex, items[1].TurnIndex}
	assert.ElementsMatch(t, []int{2, 3}, indexes)

	other, err := store.Search(ctx, "s2", "anything", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSearchByOutcome(t *testing.T) {
	store := NewStore(stubEmbedder{}, 0)
	ctx := context.Background()

	_, err := store.Add(ctx, "s1", "assistant", "good answer", AddOptions{Outcome: "positive"})
	require.NoError(t, err)
	_, err = store.Add(ctx, "s2", "assistant", "bad answer", AddOptions{Outcome: "negative"})
	require.NoError(t, err)

	scored, err := store.SearchByOutcome(ctx, "answer", "positive", 5)
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "good answer", scored[0].Item.Text)

	all, err := store.SearchByOutcome(ctx, "answer", "", 5)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFastAnswer(t *testing.T) {
	embedder := stubEmbedder{vectors: map[string][]float64{
		"how do I contact HMRC":   {1, 0, 0},
		"how do i contact hmrc??": {0.99, 0.01, 0},
		"completely different":    {0, 1, 0},
	}}
	store := NewStore(embedder, 0)
	ctx := context.Background()

	_, err := store.Add(ctx, "s1", "assistant", "Call 0300 200 3310.",
		AddOptions{Summary: "how do I contact HMRC"})
	require.NoError(t, err)

	item, ok, err := store.FastAnswer(ctx, "s1", "how do i contact hmrc??", 0.85)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Call 0300 200 3310.", item.Text)

	_, ok, err = store.FastAnswer(ctx, "s1", "completely different", 0.85)
	require.NoError(t, err)
	assert.False(t, ok)

	// Other sessions never see the memory.
	_, ok, err = store.FastAnswer(ctx, "s2", "how do i contact hmrc??", 0.85)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFastAnswerSkipsNegativeOutcome(t *testing.T) {
	embedder := stubEmbedder{vectors: map[string][]float64{
		"renew passport": {1, 0, 0},
	}}
	store := NewStore(embedder, 0)
	ctx := context.Background()

	_, err := store.Add(ctx, "s1", "assistant", "Wrong number, sorry.",
		AddOptions{Summary: "renew passport", Outcome: "negative"})
	require.NoError(t, err)

	_, ok, err := store.FastAnswer(ctx, "s1", "renew passport", 0.85)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestJSONStoreFlushAndReload(t *testing.T) {
	embedder := stubEmbedder{vectors: map[string][]float64{
		"pension query": {1, 0, 0},
	}}
	path := filepath.Join(t.TempDir(), "memory", "memory.json")

	store, err := NewJSONStore(embedder, path, 0)
	require.NoError(t, err)
	_, err = store.Add(context.Background(), "s1", "assistant", "Call 0800 731 0469.",
		AddOptions{Summary: "pension query"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := NewJSONStore(embedder, path, 0)
	require.NoError(t, err)
	item, ok, err := reloaded.FastAnswer(context.Background(), "s1", "pension query", 0.85)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Call 0800 731 0469.", item.Text)
}

func TestJSONStoreToleratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewJSONStore(stubEmbedder{}, path, 0)
	require.NoError(t, err)
	items, err := store.Search(context.Background(), "s1", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}
