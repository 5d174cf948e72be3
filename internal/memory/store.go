package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/onwardjourney/agent/internal/knowledge"
	logx "github.com/onwardjourney/agent/pkg/logger"
)

// Item is one stored memory snippet. Summary is what gets embedded and shown
// in prompts; Text keeps the full original turn.
type Item struct {
	SessionID string    `json:"session_id"`
	TurnIndex int       `json:"turn_index"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary"`
	Embedding []float64 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
	Outcome   string    `json:"outcome,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
}

// FormatForPrompt returns a concise line for inclusion in a system prompt.
func (i Item) FormatForPrompt() string {
	return fmt.Sprintf("[%d] %s", i.TurnIndex, i.Summary)
}

// Scored pairs an item with its cosine similarity to a query.
type Scored struct {
	Item  Item
	Score float64
}

// AddOptions carries the optional fields of Add.
type AddOptions struct {
	Summary   string
	TurnIndex int // used only when HasTurnIndex is true
	Outcome   string
	Tags      []string

	HasTurnIndex bool
}

// Store is a small in-process vector store over conversation memories.
// Mutations are guarded by a mutex; embedding calls happen outside the lock.
type Store struct {
	embedder embedding
	maxItems int // per session, 0 means unbounded

	mu    sync.Mutex
	items []Item
	dirty bool
}

type embedding interface {
	EmbedStrings(ctx context.Context, texts []string) ([][]float64, error)
}

func NewStore(embedder knowledge.Embedder, maxItemsPerSession int) *Store {
	return &Store{embedder: embedder, maxItems: maxItemsPerSession}
}

// Add embeds and stores one memory entry. The summary is embedded when set,
// otherwise the raw text.
func (s *Store) Add(ctx context.Context, sessionID, role, text string, opts AddOptions) (Item, error) {
	content := opts.Summary
	if content == "" {
		content = text
	}
	vecs, err := s.embedder.EmbedStrings(ctx, []string{content})
	if err != nil {
		return Item{}, fmt.Errorf("embed memory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := opts.TurnIndex
	if !opts.HasTurnIndex {
		idx = s.nextTurnIndexLocked(sessionID)
	}
	summary := opts.Summary
	if summary == "" {
		summary = text
	}
	item := Item{
		SessionID: sessionID,
		TurnIndex: idx,
		Role:      role,
		Text:      text,
		Summary:   summary,
		Embedding: vecs[0],
		CreatedAt: time.Now(),
		Outcome:   opts.Outcome,
		Tags:      opts.Tags,
	}
	s.items = append(s.items, item)
	s.pruneLocked(sessionID)
	s.dirty = true
	return item, nil
}

// Search returns the top-k memories for the session ranked by similarity.
func (s *Store) Search(ctx context.Context, sessionID, query string, k int) ([]Item, error) {
	scored, err := s.SearchWithScores(ctx, sessionID, query, k)
	if err != nil {
		return nil, err
	}
	items := make([]Item, len(scored))
	for i, sc := range scored {
		items[i] = sc.Item
	}
	return items, nil
}

// SearchWithScores is Search plus cosine scores, for callers that gate on a
// confidence threshold.
func (s *Store) SearchWithScores(ctx context.Context, sessionID, query string, k int) ([]Scored, error) {
	s.mu.Lock()
	pool := s.sessionItemsLocked(sessionID)
	s.mu.Unlock()
	return s.rank(ctx, pool, query, k)
}

// SearchByOutcome ranks memories across all sessions, restricted to the given
// outcome label when non-empty.
func (s *Store) SearchByOutcome(ctx context.Context, query, outcome string, k int) ([]Scored, error) {
	s.mu.Lock()
	var pool []Item
	for _, item := range s.items {
		if outcome == "" || item.Outcome == outcome {
			pool = append(pool, item)
		}
	}
	s.mu.Unlock()
	return s.rank(ctx, pool, query, k)
}

func (s *Store) rank(ctx context.Context, pool []Item, query string, k int) ([]Scored, error) {
	if len(pool) == 0 {
		return nil, nil
	}
	vecs, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	qv := vecs[0]

	scored := make([]Scored, len(pool))
	for i, item := range pool {
		scored[i] = Scored{Item: item, Score: knowledge.CosineSimilarity(qv, item.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// FastAnswer returns a previously stored assistant answer for a near-duplicate
// query, skipping the model entirely. Memories labelled with a negative
// outcome never qualify.
func (s *Store) FastAnswer(ctx context.Context, sessionID, query string, threshold float64) (Item, bool, error) {
	scored, err := s.SearchWithScores(ctx, sessionID, query, 1)
	if err != nil {
		return Item{}, false, err
	}
	if len(scored) == 0 {
		return Item{}, false, nil
	}
	best := scored[0]
	if best.Score < threshold || best.Item.Outcome == "negative" || best.Item.Text == "" {
		return Item{}, false, nil
	}
	logx.Debug().
		Str("sessionID", sessionID).
		Float64("score", best.Score).
		Int("turnIndex", best.Item.TurnIndex).
		Msg("fast-answer hit")
	return best.Item, true, nil
}

func (s *Store) sessionItemsLocked(sessionID string) []Item {
	var out []Item
	for _, item := range s.items {
		if item.SessionID == sessionID {
			out = append(out, item)
		}
	}
	return out
}

func (s *Store) nextTurnIndexLocked(sessionID string) int {
	next := 0
	for _, item := range s.items {
		if item.SessionID == sessionID && item.TurnIndex >= next {
			next = item.TurnIndex + 1
		}
	}
	return next
}

// pruneLocked enforces the per-session cap, keeping the most recent entries.
func (s *Store) pruneLocked(sessionID string) {
	if s.maxItems <= 0 {
		return
	}
	var session []Item
	for _, item := range s.items {
		if item.SessionID == sessionID {
			session = append(session, item)
		}
	}
	if len(session) <= s.maxItems {
		return
	}
	sort.SliceStable(session, func(i, j int) bool {
		if session[i].CreatedAt.Equal(session[j].CreatedAt) {
			return session[i].TurnIndex > session[j].TurnIndex
		}
		return session[i].CreatedAt.After(session[j].CreatedAt)
	})
	keep := make(map[int]bool, s.maxItems)
	for _, item := range session[:s.maxItems] {
		keep[item.TurnIndex] = true
	}
	kept := s.items[:0]
	for _, item := range s.items {
		if item.SessionID != sessionID || keep[item.TurnIndex] {
			kept = append(kept, item)
		}
	}
	s.items = kept
}
