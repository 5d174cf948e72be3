// Package search provides remote search over public GOV.UK content.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	logx "github.com/onwardjourney/agent/pkg/logger"
)

// Hit is one remote search result.
type Hit struct {
	Title       string
	URL         string
	Description string
	Score       float64
}

// Index is anything that can answer a free-text query with ranked hits.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// Config configures the GOV.UK search client.
type Config struct {
	BaseURL string        `envconfig:"GOVUK_SEARCH_BASE_URL" default:"https://www.gov.uk"`
	Timeout time.Duration `envconfig:"GOVUK_SEARCH_TIMEOUT" default:"10s"`
}

// GOVUKClient queries the public GOV.UK Search API.
type GOVUKClient struct {
	baseURL string
	httpc   *http.Client
}

func NewGOVUKClient(cfg Config) *GOVUKClient {
	return &GOVUKClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
	}
}

type govukResponse struct {
	Results []struct {
		Title       string  `json:"title"`
		Link        string  `json:"link"`
		Description string  `json:"description"`
		ESScore     float64 `json:"es_score"`
	} `json:"results"`
}

func (c *GOVUKClient) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 3
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(k))
	q.Set("fields", "title,link,description,es_score")
	endpoint := c.baseURL + "/api/search.json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("govuk search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logx.Warn().Int("status", resp.StatusCode).Str("query", query).Msg("govuk search returned non-200")
		return nil, fmt.Errorf("govuk search: unexpected status %d", resp.StatusCode)
	}

	var body govukResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode govuk response: %w", err)
	}

	hits := make([]Hit, 0, len(body.Results))
	for _, r := range body.Results {
		link := r.Link
		if link != "" && !strings.HasPrefix(link, "http") {
			link = "https://www.gov.uk" + link
		}
		hits = append(hits, Hit{
			Title:       r.Title,
			URL:         link,
			Description: r.Description,
			Score:       r.ESScore,
		})
	}
	return hits, nil
}

// RenderHits formats results for inclusion in a tool response.
func RenderHits(hits []Hit) string {
	if len(hits) == 0 {
		return "No GOV.UK results found."
	}
	var b strings.Builder
	b.WriteString("GOV.UK results:\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "- %s (%s): %s\n", h.Title, h.URL, h.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

var _ Index = (*GOVUKClient)(nil)
