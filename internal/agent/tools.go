package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/onwardjourney/agent/internal/knowledge"
	"github.com/onwardjourney/agent/internal/search"
	logx "github.com/onwardjourney/agent/pkg/logger"
)

const (
	toolInternalKB = "query_internal_kb"
	toolGOVUK      = "query_govuk_kb"
)

// ragUninitializedResult is returned by the internal KB tool when no corpus
// was loaded.
const ragUninitializedResult = "RAG system is not initialized. Cannot access data."

// Registry holds the tools the agent is authorized to call. Anything the
// model requests outside this set gets a synthetic error result, never an
// execution.
type Registry struct {
	tools map[string]tool.InvokableTool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]tool.InvokableTool)}
}

func (r *Registry) Register(ctx context.Context, t tool.InvokableTool) error {
	info, err := t.Info(ctx)
	if err != nil {
		return fmt.Errorf("tool info: %w", err)
	}
	r.tools[info.Name] = t
	return nil
}

// Lookup returns the registered tool, if any.
func (r *Registry) Lookup(name string) (tool.InvokableTool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos returns ToolInfo for every registered tool, for model binding.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, name := range r.Names() {
		info, err := r.tools[name].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool info for %s: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

type queryArgs struct {
	Query string `json:"query"`
}

// internalKBTool retrieves ranked chunks from the internal service corpus.
// Implemented by hand rather than via the tool helper utilities so the
// retrieved context reaches the model as raw text.
type internalKBTool struct {
	scorer *knowledge.CandidateScorer
}

func NewInternalKBTool(scorer *knowledge.CandidateScorer) tool.InvokableTool {
	return &internalKBTool{scorer: scorer}
}

func (t *internalKBTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: toolInternalKB,
		Desc: "Search specialized internal Onward Journey data for guidance on government services and their contact details.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "The user's specific natural language request",
				Required: true,
			},
		}),
	}, nil
}

func (t *internalKBTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var args queryArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("parse %s arguments: %w", toolInternalKB, err)
	}
	if t.scorer == nil {
		return ragUninitializedResult, nil
	}

	candidates, err := t.scorer.TopCandidates(ctx, args.Query, t.scorer.Config().TopK)
	if err != nil {
		return "", fmt.Errorf("retrieve candidates: %w", err)
	}
	if candidates == nil {
		return ragUninitializedResult, nil
	}

	result := t.scorer.RetrievedContext(candidates)
	if hint := t.scorer.BuildConfidenceHint(candidates); hint != "" {
		result += "\n\n" + hint
	}
	logx.Debug().Str("query", args.Query).Int("candidates", len(candidates)).Msg("internal kb retrieval")
	return result, nil
}

// govukTool searches public GOV.UK content.
type govukTool struct {
	index search.Index
}

func NewGOVUKTool(index search.Index) tool.InvokableTool {
	return &govukTool{index: index}
}

func (t *govukTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: toolGOVUK,
		Desc: "Search public GOV.UK policy and legislation.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     "string",
				Desc:     "The user's specific natural language request",
				Required: true,
			},
		}),
	}, nil
}

func (t *govukTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var args queryArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("parse %s arguments: %w", toolGOVUK, err)
	}
	hits, err := t.index.Search(ctx, args.Query, 3)
	if err != nil {
		return "", fmt.Errorf("govuk search: %w", err)
	}
	return search.RenderHits(hits), nil
}
