package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	logx "github.com/onwardjourney/agent/pkg/logger"
)

// handoffBlockedPrefix marks a synthetic tool result produced when triage
// fields are still missing. The outer loop treats it like any other tool
// output.
const handoffBlockedPrefix = "HANDOFF_BLOCKED:"

// TriageReport is the triage model's verdict on one handoff attempt. It is
// produced fresh on every attempt; the answer depends on the live history so
// nothing is cached.
type TriageReport struct {
	Extracted map[string]string `json:"extracted"`
	Missing   []string          `json:"missing"`
	FollowUp  string            `json:"follow_up"`
}

// TriageGate sits between the orchestrator and the live-handoff tools. A
// handoff only proceeds once a dedicated extraction call confirms every
// required field has been collected from the user.
type TriageGate struct {
	model ChatModel
}

func NewTriageGate(model ChatModel) *TriageGate {
	return &TriageGate{model: model}
}

// Intercept runs the triage protocol for one handoff tool call. Returns
// either a blocked result prompting the model to ask the user, or the real
// tool's signal string.
func (g *TriageGate) Intercept(ctx context.Context, t *HandoffTool, argumentsInJSON string, history []*schema.Message) (string, error) {
	dept := t.Department()
	if len(dept.RequiredFields) == 0 {
		return t.InvokableRun(ctx, argumentsInJSON)
	}

	report := g.extract(ctx, history, dept)

	if len(report.Missing) > 0 {
		followUp := report.FollowUp
		if followUp == "" {
			followUp = dept.Prompt
		}
		logx.Debug().
			Str("department", dept.Name).
			Strs("missing", report.Missing).
			Msg("handoff blocked pending triage fields")
		return fmt.Sprintf("%s missing required information: %s. Ask the user: %s",
			handoffBlockedPrefix, strings.Join(report.Missing, ", "), followUp), nil
	}

	var args handoffArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("parse handoff arguments: %w", err)
	}
	args.TriageData = report.Extracted

	merged, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal handoff arguments: %w", err)
	}
	return t.InvokableRun(ctx, string(merged))
}

// extract asks the triage model which required fields the history answers.
// Failures never propagate: any error degrades to a full-missing report so the
// agent simply asks again.
func (g *TriageGate) extract(ctx context.Context, history []*schema.Message, dept Department) TriageReport {
	fallback := TriageReport{
		Extracted: map[string]string{},
		Missing:   append([]string(nil), dept.RequiredFields...),
		FollowUp:  dept.Prompt,
	}

	prompt := triageExtractionPrompt(renderHistoryText(history), dept.RequiredFields)
	out, err := g.model.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		logx.Warn().Err(err).Str("department", dept.Name).Msg("triage extraction call failed")
		return fallback
	}

	report, err := parseTriageReport(out.Content)
	if err != nil {
		logx.Warn().Err(err).Str("department", dept.Name).Msg("triage extraction unparseable")
		return fallback
	}
	return normalizeTriageReport(report, dept.RequiredFields)
}

// parseTriageReport strips markdown code fences and parses the JSON verdict.
func parseTriageReport(content string) (TriageReport, error) {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	// tolerate prose around the object
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return TriageReport{}, fmt.Errorf("no json object in triage output")
	}

	var report TriageReport
	if err := json.Unmarshal([]byte(s[start:end+1]), &report); err != nil {
		return TriageReport{}, fmt.Errorf("parse triage report: %w", err)
	}
	return report, nil
}

// normalizeTriageReport keeps the report consistent with the required field
// list: extras are dropped, and required fields without an extracted value are
// always listed missing.
func normalizeTriageReport(report TriageReport, required []string) TriageReport {
	out := TriageReport{Extracted: map[string]string{}, FollowUp: report.FollowUp}
	for _, field := range required {
		if v, ok := report.Extracted[field]; ok && strings.TrimSpace(v) != "" {
			out.Extracted[field] = v
		} else {
			out.Missing = append(out.Missing, field)
		}
	}
	return out
}

// renderHistoryText flattens text turns for the extraction prompt. Tool
// results are skipped; they are noise for field extraction.
func renderHistoryText(history []*schema.Message) string {
	var b strings.Builder
	for _, m := range history {
		if m == nil || m.Content == "" {
			continue
		}
		switch m.Role {
		case schema.User:
			fmt.Fprintf(&b, "USER: %s\n", m.Content)
		case schema.Assistant:
			fmt.Fprintf(&b, "ASSISTANT: %s\n", m.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
