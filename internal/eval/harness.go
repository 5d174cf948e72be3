package eval

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/onwardjourney/agent/internal/agent"
	"github.com/onwardjourney/agent/internal/conversation"
	logx "github.com/onwardjourney/agent/pkg/logger"
)

// Mode selects how the harness issues queries.
type Mode string

const (
	// ModeForced bypasses clarification: the query carries an instruction
	// prefix demanding immediate tool use.
	ModeForced Mode = "forced"
	// ModeClarification issues the query normally and answers one clarifying
	// question with the case's scripted reply.
	ModeClarification Mode = "clarification"
)

// Sentinel extracted value for cases that errored instead of answering.
const extractedOnError = "API_ERROR"

// TestCase is one evaluation query with its ground truth.
type TestCase struct {
	TestID              string
	Query               string
	ExpectedPhone       string
	Ambiguous           bool
	ClarificationAnswer string
	Topic               string
}

// CaseResult is one evaluated row.
type CaseResult struct {
	TestID    string
	Query     string
	Expected  string
	Extracted string
	Status    string // PASS, FAIL or ERROR
	Ambiguous bool
	Elapsed   time.Duration
	Topic     string
}

// Sender is the slice of the agent the harness drives.
type Sender interface {
	Send(ctx context.Context, sessionID, userText string, opts agent.SendOptions) (*agent.SendResult, error)
}

// Factory builds a fresh agent per test case so no conversation state leaks
// between cases.
type Factory func(ctx context.Context) (Sender, error)

// Evaluate runs every case through a fresh agent and returns one row per
// case. A failing case is recorded as ERROR and the batch continues.
func Evaluate(ctx context.Context, factory Factory, cases []TestCase, mode Mode) []CaseResult {
	results := make([]CaseResult, 0, len(cases))
	for i, tc := range cases {
		logx.Info().
			Int("case", i+1).
			Int("total", len(cases)).
			Str("test_id", tc.TestID).
			Str("mode", string(mode)).
			Msg("evaluating")
		results = append(results, evaluateCase(ctx, factory, tc, mode))
	}
	return results
}

func evaluateCase(ctx context.Context, factory Factory, tc TestCase, mode Mode) CaseResult {
	row := CaseResult{
		TestID:    tc.TestID,
		Query:     tc.Query,
		Expected:  CanonicalizePhone(tc.ExpectedPhone),
		Ambiguous: tc.Ambiguous,
		Topic:     tc.Topic,
	}
	fail := func(err error) CaseResult {
		logx.Warn().Err(err).Str("test_id", tc.TestID).Msg("case errored")
		row.Status = "ERROR"
		row.Extracted = extractedOnError
		return row
	}

	sender, err := factory(ctx)
	if err != nil {
		return fail(fmt.Errorf("build agent: %w", err))
	}

	sessionID := "eval-" + tc.TestID
	start := time.Now()

	var res *agent.SendResult
	switch mode {
	case ModeForced:
		res, err = sender.Send(ctx, sessionID, tc.Query, agent.SendOptions{Forced: true})
	default:
		res, err = sender.Send(ctx, sessionID, tc.Query, agent.SendOptions{})
		if err == nil && tc.Ambiguous && res.State == conversation.AwaitingClarification && tc.ClarificationAnswer != "" {
			res, err = sender.Send(ctx, sessionID, tc.ClarificationAnswer, agent.SendOptions{})
		}
	}
	row.Elapsed = time.Since(start)
	if err != nil {
		return fail(err)
	}

	row.Extracted = CanonicalizePhone(res.Text)
	if row.Extracted == row.Expected {
		row.Status = "PASS"
	} else {
		row.Status = "FAIL"
	}
	return row
}

// LoadTestCases reads test cases from a CSV or JSON file, keyed by extension.
func LoadTestCases(path string) ([]TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open test data %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return readTestCasesJSON(f)
	}
	return readTestCasesCSV(f)
}

func readTestCasesJSON(r io.Reader) ([]TestCase, error) {
	var raw []struct {
		TestID              string `json:"test_id"`
		Query               string `json:"query"`
		ExpectedPhone       string `json:"expected_phone"`
		Ambiguous           bool   `json:"ambiguous"`
		ClarificationAnswer string `json:"clarification_answer"`
		Topic               string `json:"topic"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode test data: %w", err)
	}
	cases := make([]TestCase, 0, len(raw))
	for _, rc := range raw {
		cases = append(cases, TestCase(rc))
	}
	return cases, nil
}

func readTestCasesCSV(r io.Reader) ([]TestCase, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read test data header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	get := func(rec []string, names ...string) string {
		for _, name := range names {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
		}
		return ""
	}

	var cases []TestCase
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read test data row: %w", err)
		}
		ambiguous, _ := strconv.ParseBool(get(rec, "ambiguous"))
		tc := TestCase{
			TestID:              get(rec, "test_id", "uid"),
			Query:               get(rec, "query", "question"),
			ExpectedPhone:       get(rec, "expected_phone", "phone_number"),
			Ambiguous:           ambiguous,
			ClarificationAnswer: get(rec, "clarification_answer"),
			Topic:               get(rec, "topic"),
		}
		if tc.TestID == "" || tc.Query == "" {
			continue
		}
		cases = append(cases, tc)
	}
	return cases, nil
}
