package knowledge

import (
	"context"
	"regexp"
	"sort"
	"strings"

	logx "github.com/onwardjourney/agent/pkg/logger"
)

// ScorerConfig carries the thresholds of the candidate ranking pipeline.
type ScorerConfig struct {
	AmbiguityGap    float64 `envconfig:"SCORER_AMBIGUITY_GAP" default:"0.05"`
	StrongThreshold float64 `envconfig:"SCORER_STRONG_THRESHOLD" default:"0.35"`
	ConfidentScore  float64 `envconfig:"SCORER_CONFIDENT_SCORE" default:"0.55"`
	ConfidentMargin float64 `envconfig:"SCORER_CONFIDENT_MARGIN" default:"0.15"`
	WeakFloor       float64 `envconfig:"SCORER_WEAK_FLOOR" default:"0.25"`
	TopK            int     `envconfig:"SCORER_TOP_K" default:"3"`
}

// Candidate is one scored, field-parsed retrieval result.
type Candidate struct {
	ServiceRecord

	BaseScore float64
	Bonus     float64
	Score     float64
}

// CandidateScorer ranks corpus entries against a query so the agent stays
// focused on conversation flow.
type CandidateScorer struct {
	corpus   *Corpus
	embedder Embedder
	cfg      ScorerConfig
}

func NewCandidateScorer(corpus *Corpus, embedder Embedder, cfg ScorerConfig) *CandidateScorer {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	return &CandidateScorer{corpus: corpus, embedder: embedder, cfg: cfg}
}

// Config exposes the active thresholds.
func (s *CandidateScorer) Config() ScorerConfig {
	return s.cfg
}

var (
	tagSplitRe  = regexp.MustCompile(`[,/;|]`)
	descWordRe  = regexp.MustCompile(`[a-zA-Z]{4,}`)
	clarWordRe  = regexp.MustCompile(`[a-zA-Z]{3,}`)
	maxLexBonus = 0.05
)

// lexicalBonus adds a small boost when tag or description terms appear in the
// query. Capped so it cannot override embedding similarity on its own.
func lexicalBonus(record ServiceRecord, query string) float64 {
	queryLower := strings.ToLower(query)
	bonus := 0.0

	for _, raw := range tagSplitRe.Split(record.Tags, -1) {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token != "" && strings.Contains(queryLower, token) {
			bonus += 0.02
		}
	}

	seen := map[string]bool{}
	for _, token := range descWordRe.FindAllString(strings.ToLower(record.Description), -1) {
		if seen[token] {
			continue
		}
		seen[token] = true
		if strings.Contains(queryLower, token) {
			bonus += 0.005
		}
	}

	if bonus > maxLexBonus {
		return maxLexBonus
	}
	return bonus
}

// TopCandidates embeds the query, scores every corpus entry and returns the
// top-N candidates above the weak floor, sorted by descending score with ties
// kept in corpus order. An empty or uninitialised corpus yields no candidates
// and no error; the caller surfaces that as a plain message.
func (s *CandidateScorer) TopCandidates(ctx context.Context, query string, topN int) ([]Candidate, error) {
	if s.corpus.Len() == 0 {
		return nil, nil
	}
	if topN <= 0 {
		topN = s.cfg.TopK
	}

	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	queryEmbedding := vectors[0]

	candidates := make([]Candidate, 0, s.corpus.Len())
	for i, emb := range s.corpus.Embeddings {
		base := CosineSimilarity(queryEmbedding, emb)
		bonus := lexicalBonus(s.corpus.Records[i], query)
		score := base + bonus
		if score < s.cfg.WeakFloor {
			continue
		}
		candidates = append(candidates, Candidate{
			ServiceRecord: s.corpus.Records[i],
			BaseScore:     base,
			Bonus:         bonus,
			Score:         score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}

	logx.Debug().
		Int("corpus_size", s.corpus.Len()).
		Int("candidates", len(candidates)).
		Msg("Scored retrieval candidates")
	return candidates, nil
}

// RetrievedContext formats the top candidates' chunks the way the response
// model expects to consume retrieval output.
func (s *CandidateScorer) RetrievedContext(candidates []Candidate) string {
	var b strings.Builder
	b.WriteString("Retrieved Context:\n")
	for i, c := range candidates {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(c.RenderChunk())
	}
	return b.String()
}
