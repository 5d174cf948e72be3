package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	logx "github.com/onwardjourney/agent/pkg/logger"
)

const (
	// handoffToolPrefix marks a tool as triage-gated; the orchestrator never
	// executes these directly.
	handoffToolPrefix = "connect_to_live_chat_"

	handoffSignalMarker = "SIGNAL: initiate_live_handoff "
)

// Department describes one live-chat destination and the triage fields that
// must be collected before transferring. The field schemas mirror what the
// Genesys messaging flows ask for; they are kept static here so the agent
// works without platform credentials.
type Department struct {
	Name           string
	Description    string
	DeploymentID   string
	RequiredFields []string
	FieldOptions   map[string][]string
	Prompt         string
}

// Departments returns the live-chat destinations for the given deployment
// configuration.
func Departments(cfg GenesysConfig) []Department {
	return []Department{
		{
			Name:           "moj",
			Description:    "Ministry of Justice",
			DeploymentID:   cfg.DeploymentMOJ,
			RequiredFields: []string{"enquiry_type"},
			FieldOptions:   map[string][]string{"enquiry_type": {"courts", "prisons", "probation"}},
			Prompt:         "Is your enquiry about courts, prisons or probation?",
		},
		{
			Name:           "immigration_and_visas",
			Description:    "Immigration and visas",
			DeploymentID:   cfg.DeploymentImmigration,
			RequiredFields: []string{"visa_type"},
			FieldOptions:   map[string][]string{"visa_type": {"work", "study", "family", "visit"}},
			Prompt:         "What type of visa is your enquiry about: work, study, family or visit?",
		},
		{
			Name:           "hmrc",
			Description:    "Pensions, forms and returns",
			DeploymentID:   cfg.DeploymentPensions,
			RequiredFields: []string{"topic"},
			FieldOptions:   map[string][]string{"topic": {"pensions", "forms", "returns"}},
			Prompt:         "Is your enquiry about pensions, forms or returns?",
		},
	}
}

// HandoffSignal is the payload handed to the frontend to open a live chat.
type HandoffSignal struct {
	Action           string            `json:"action"`
	DeploymentID     string            `json:"deploymentId"`
	Region           string            `json:"region"`
	Token            string            `json:"token"`
	Reason           string            `json:"reason"`
	Summary          string            `json:"summary"`
	CustomAttributes map[string]string `json:"customAttributes"`
}

// Render serializes the signal in its wire form.
func (s HandoffSignal) Render() string {
	b, _ := json.Marshal(s)
	return handoffSignalMarker + string(b)
}

// DetectHandoffSignal reports whether a tool output carries a handoff signal
// and parses it if so.
func DetectHandoffSignal(output string) (*HandoffSignal, bool) {
	idx := strings.Index(output, handoffSignalMarker)
	if idx < 0 {
		return nil, false
	}
	var sig HandoffSignal
	if err := json.Unmarshal([]byte(output[idx+len(handoffSignalMarker):]), &sig); err != nil {
		logx.Warn().Err(err).Msg("handoff signal marker present but payload unparseable")
		return nil, false
	}
	return &sig, true
}

// IsHandoffTool reports whether a tool name follows the live-handoff naming
// convention.
func IsHandoffTool(name string) bool {
	return strings.HasPrefix(name, handoffToolPrefix)
}

type recentQueriesKey struct{}

// WithRecentUserQueries stashes the latest user turns on the context so the
// handoff tool can build its summary without holding session state.
func WithRecentUserQueries(ctx context.Context, queries []string) context.Context {
	return context.WithValue(ctx, recentQueriesKey{}, queries)
}

func recentUserQueries(ctx context.Context) []string {
	qs, _ := ctx.Value(recentQueriesKey{}).([]string)
	return qs
}

type handoffArgs struct {
	Reason     string            `json:"reason"`
	TriageData map[string]string `json:"triage_data"`
}

// HandoffTool emits the live-chat signal for one department. A fresh token is
// minted per invocation.
type HandoffTool struct {
	dept   Department
	region string
}

func NewHandoffTool(dept Department, region string) *HandoffTool {
	return &HandoffTool{dept: dept, region: region}
}

func (t *HandoffTool) Department() Department { return t.dept }

func (t *HandoffTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	triageProps := make(map[string]*schema.ParameterInfo, len(t.dept.RequiredFields))
	for _, field := range t.dept.RequiredFields {
		desc := fmt.Sprintf("Value for %s", field)
		if options := t.dept.FieldOptions[field]; len(options) > 0 {
			desc = fmt.Sprintf("One of: %s", strings.Join(options, ", "))
		}
		triageProps[field] = &schema.ParameterInfo{Type: "string", Desc: desc, Required: true}
	}

	return &schema.ToolInfo{
		Name: handoffToolPrefix + t.dept.Name,
		Desc: fmt.Sprintf(
			"Connect to a live agent for %s. Requires: %s to be collected from the user first. "+
				"Use the following prompt to ask the user for missing information: %s",
			t.dept.Description, strings.Join(t.dept.RequiredFields, ", "), t.dept.Prompt,
		),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"reason": {
				Type:     "string",
				Desc:     "Why the user needs a live agent",
				Required: true,
			},
			"triage_data": {
				Type:      "object",
				Desc:      "Collected triage fields",
				SubParams: triageProps,
			},
		}),
	}, nil
}

func (t *HandoffTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var args handoffArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", fmt.Errorf("parse handoff arguments: %w", err)
	}

	queries := recentUserQueries(ctx)
	if len(queries) > 3 {
		queries = queries[len(queries)-3:]
	}
	summary := fmt.Sprintf("User is asking about: %s. Context: %s", args.Reason, strings.Join(queries, " | "))

	sig := HandoffSignal{
		Action:           "initiate_live_handoff",
		DeploymentID:     t.dept.DeploymentID,
		Region:           t.region,
		Token:            uuid.NewString(),
		Reason:           args.Reason,
		Summary:          summary,
		CustomAttributes: args.TriageData,
	}
	logx.Info().Str("department", t.dept.Name).Str("reason", args.Reason).Msg("live handoff signal emitted")
	return sig.Render(), nil
}

var _ tool.InvokableTool = (*HandoffTool)(nil)
