package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/onwardjourney/agent/internal/conversation"
	"github.com/onwardjourney/agent/internal/memory"
	logx "github.com/onwardjourney/agent/pkg/logger"
)

// handoffCompleteNotice is returned for any message sent after a session has
// been transferred to a live agent.
const handoffCompleteNotice = "You have been connected to a live agent. This conversation has ended; please continue in the live chat."

// SendResult is the outcome of one user message.
type SendResult struct {
	Text    string
	Handoff *HandoffSignal
	State   conversation.State
}

// SendOptions tweaks a single send.
type SendOptions struct {
	// Forced prepends an instruction that demands immediate tool use and a
	// phone number in the answer. Used by the evaluation harness. Forced
	// sends are neither served from memory nor stored in it.
	Forced bool
}

// Agent runs the tool-orchestration loop: it maintains session state, decides
// between clarification and retrieval, gates live handoffs through triage, and
// drives the model until it produces a user-facing answer.
type Agent struct {
	model    ChatModel
	gate     *TriageGate
	registry *Registry
	sessions *conversation.Manager
	memory   *memory.Store
	cfg      Config

	modelName         string
	systemInstruction string
}

// New assembles an agent from its capabilities. memStore may be nil when
// memory is disabled; modelName is used for cost attribution only.
func New(model ChatModel, modelName string, gate *TriageGate, registry *Registry, sessions *conversation.Manager, memStore *memory.Store, cfg Config) *Agent {
	return &Agent{
		model:             model,
		gate:              gate,
		registry:          registry,
		sessions:          sessions,
		memory:            memStore,
		cfg:               cfg,
		modelName:         modelName,
		systemInstruction: buildSystemInstruction(registry.Names()),
	}
}

// Send processes one user message for the given session and returns the final
// response. Concurrent sends for the same session are serialized by the
// session manager.
func (a *Agent) Send(ctx context.Context, sessionID, userText string, opts SendOptions) (*SendResult, error) {
	sess, release, err := a.sessions.Acquire(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer release()

	if sess.State == conversation.HandoffComplete {
		return &SendResult{Text: handoffCompleteNotice, State: sess.State}, nil
	}

	if a.memory != nil && a.cfg.Memory.FastAnswerThreshold > 0 && !opts.Forced {
		item, hit, err := a.memory.FastAnswer(ctx, sessionID, userText, a.cfg.Memory.FastAnswerThreshold)
		if err != nil {
			logx.Warn().Err(err).Str("sessionID", sessionID).Msg("fast-answer lookup failed")
		} else if hit {
			added := sess.Append(schema.UserMessage(userText), schema.AssistantMessage(item.Text, nil))
			if err := a.sessions.Persist(ctx, sess, added); err != nil {
				logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to persist fast answer")
			}
			return &SendResult{Text: item.Text, State: sess.State}, nil
		}
	}

	prompt := userText
	if opts.Forced {
		prompt = forcedInstructionPrefix + userText
	}

	var added []*schema.Message
	appendTurns := func(msgs ...*schema.Message) {
		added = append(added, sess.Append(msgs...)...)
	}
	finish := func(res *SendResult) (*SendResult, error) {
		sess.State = res.State
		if err := a.sessions.Persist(ctx, sess, added); err != nil {
			logx.Error().Err(err).Str("sessionID", sessionID).Msg("failed to persist session")
		}
		return res, nil
	}

	clarificationPending := sess.State == conversation.AwaitingClarification
	appendTurns(schema.UserMessage(prompt))

	toolRan := false
	toolCallIDSeq := 0
	totalCostUSD := 0.0

	for iteration := 0; iteration < a.maxIterations(); iteration++ {
		out, err := a.model.Generate(ctx, a.callHistory(sess))
		if err != nil {
			return nil, fmt.Errorf("model generate: %w", err)
		}
		a.logUsage(sessionID, out, &totalCostUSD)

		// Some providers omit tool call IDs; synthesize them so tool results
		// can reference their call.
		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				toolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", toolCallIDSeq)
			}
		}

		if len(out.ToolCalls) == 0 {
			text := strings.TrimSpace(out.Content)
			if text == "" {
				logx.Warn().Str("sessionID", sessionID).Msg("model returned empty text")
				text = emptyResponseFallback
			}
			appendTurns(schema.AssistantMessage(text, nil))

			next := conversation.Idle
			if !clarificationPending && !toolRan {
				next = conversation.AwaitingClarification
			}
			if !opts.Forced {
				a.remember(ctx, sessionID, userText, text)
			}
			return finish(&SendResult{Text: text, State: next})
		}

		appendTurns(out)
		logx.Debug().Int("tool_count", len(out.ToolCalls)).Str("sessionID", sessionID).Msg("calling tools")

		var handoff *HandoffSignal
		for _, call := range out.ToolCalls {
			result := a.executeTool(ctx, sess, call)
			appendTurns(&schema.Message{
				Role:       schema.Tool,
				ToolCallID: call.ID,
				Content:    result,
			})
			if sig, ok := DetectHandoffSignal(result); ok && handoff == nil {
				handoff = sig
			}
			toolRan = true
		}

		if handoff != nil {
			text := a.transitionMessage(ctx, sess)
			appendTurns(schema.AssistantMessage(text, nil))
			return finish(&SendResult{Text: text, Handoff: handoff, State: conversation.HandoffComplete})
		}
	}

	// Budget spent: tell the model to wrap up with what it has.
	logx.Warn().Str("sessionID", sessionID).Int("max_iterations", a.maxIterations()).Msg("tool iteration limit reached")
	appendTurns(&schema.Message{Role: schema.System, Content: wrapUpNotice(a.maxIterations())})

	out, err := a.model.Generate(ctx, a.callHistory(sess))
	if err != nil {
		return nil, fmt.Errorf("model generate (wrap-up): %w", err)
	}
	a.logUsage(sessionID, out, &totalCostUSD)

	text := strings.TrimSpace(out.Content)
	if text == "" {
		text = emptyResponseFallback
	}
	appendTurns(schema.AssistantMessage(text, nil))
	if !opts.Forced {
		a.remember(ctx, sessionID, userText, text)
	}
	return finish(&SendResult{Text: text, State: conversation.Idle})
}

// executeTool resolves and runs a single tool call, routing live-handoff
// tools through the triage gate. Execution failures become tool results so
// the loop can keep going.
func (a *Agent) executeTool(ctx context.Context, sess *conversation.Session, call schema.ToolCall) string {
	name := call.Function.Name

	t, ok := a.registry.Lookup(name)
	if !ok {
		logx.Warn().Str("tool", name).Msg("model attempted to call unauthorized tool")
		return fmt.Sprintf("Tool '%s' is not allowed.", name)
	}

	if IsHandoffTool(name) {
		ht, isHandoff := t.(*HandoffTool)
		if !isHandoff {
			logx.Warn().Str("tool", name).Msg("handoff-named tool is not a handoff tool")
			return fmt.Sprintf("Tool '%s' is not allowed.", name)
		}
		ctx = WithRecentUserQueries(ctx, sess.LastUserTexts(3))
		result, err := a.gate.Intercept(ctx, ht, call.Function.Arguments, sess.Messages)
		if err != nil {
			logx.Error().Err(err).Str("tool", name).Msg("triage gate failed")
			return fmt.Sprintf("ERROR: %v", err)
		}
		return result
	}

	result, err := t.InvokableRun(ctx, call.Function.Arguments)
	if err != nil {
		logx.Error().Err(err).Str("tool", name).Msg("tool execution failed")
		return fmt.Sprintf("ERROR: %v", err)
	}
	return result
}

// transitionMessage makes one final call for a short send-off after a handoff
// signal. Tool calls in the reply are ignored; the signal already ended the
// loop.
func (a *Agent) transitionMessage(ctx context.Context, sess *conversation.Session) string {
	msgs := append(a.callHistory(sess), &schema.Message{
		Role: schema.System,
		Content: "The user is being connected to a live agent now. " +
			"Reply with one short, warm transition message. Do not call any tools.",
	})
	out, err := a.model.Generate(ctx, msgs)
	if err != nil {
		logx.Warn().Err(err).Msg("transition message call failed")
		return "You're being connected to a live agent now."
	}
	text := strings.TrimSpace(out.Content)
	if text == "" {
		return "You're being connected to a live agent now."
	}
	return text
}

// callHistory builds the provider message list: standing instruction first,
// then the session transcript.
func (a *Agent) callHistory(sess *conversation.Session) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(sess.Messages)+1)
	msgs = append(msgs, schema.SystemMessage(a.systemInstruction))
	msgs = append(msgs, sess.Messages...)
	return msgs
}

// remember stores the answer keyed by the question so near-duplicate queries
// can short-circuit later.
func (a *Agent) remember(ctx context.Context, sessionID, userText, answer string) {
	if a.memory == nil || answer == "" || answer == emptyResponseFallback {
		return
	}
	if _, err := a.memory.Add(ctx, sessionID, "assistant", answer, memory.AddOptions{Summary: userText}); err != nil {
		logx.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to store memory")
	}
}

func (a *Agent) maxIterations() int {
	if a.cfg.Tools.MaxIterations <= 0 {
		return 10
	}
	return a.cfg.Tools.MaxIterations
}

func (a *Agent) logUsage(sessionID string, out *schema.Message, totalCostUSD *float64) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	pricing := ResolvePricing(a.modelName)
	inC, outC, totalC := ComputeCost(usage, pricing)
	*totalCostUSD += totalC
	logx.Debug().
		Str("session_id", sessionID).
		Str("model", a.modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", *totalCostUSD).
		Msg("LLM usage")
}
