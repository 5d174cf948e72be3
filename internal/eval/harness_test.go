package eval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onwardjourney/agent/internal/agent"
	"github.com/onwardjourney/agent/internal/conversation"
)

// scriptedSender replays canned results turn by turn and records what it was
// asked.
type scriptedSender struct {
	results []*agent.SendResult
	err     error

	queries []string
	opts    []agent.SendOptions
}

func (s *scriptedSender) Send(_ context.Context, _ string, userText string, opts agent.SendOptions) (*agent.SendResult, error) {
	s.queries = append(s.queries, userText)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return nil, s.err
	}
	i := len(s.queries) - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}

func factoryFor(s *scriptedSender) Factory {
	return func(context.Context) (Sender, error) { return s, nil }
}

func TestEvaluateForcedMode(t *testing.T) {
	sender := &scriptedSender{results: []*agent.SendResult{
		{Text: "Call 0300 200 3310.", State: conversation.Idle},
	}}
	cases := []TestCase{{TestID: "t1", Query: "self assessment number", ExpectedPhone: "0300 200 3310"}}

	rows := Evaluate(context.Background(), factoryFor(sender), cases, ModeForced)
	require.Len(t, rows, 1)
	assert.Equal(t, "PASS", rows[0].Status)
	assert.Equal(t, "0300 200 3310", rows[0].Extracted)
	require.Len(t, sender.opts, 1)
	assert.True(t, sender.opts[0].Forced)
}

func TestEvaluateClarificationSecondTurn(t *testing.T) {
	sender := &scriptedSender{results: []*agent.SendResult{
		{Text: "Are you based in England or Scotland?", State: conversation.AwaitingClarification},
		{Text: "The number is 0300 100 0601.", State: conversation.Idle},
	}}
	cases := []TestCase{{
		TestID:              "amb1",
		Query:               "student finance contact",
		ExpectedPhone:       "0300 100 0601",
		Ambiguous:           true,
		ClarificationAnswer: "I'm in England",
	}}

	rows := Evaluate(context.Background(), factoryFor(sender), cases, ModeClarification)
	require.Len(t, rows, 1)
	assert.Equal(t, "PASS", rows[0].Status)
	require.Len(t, sender.queries, 2)
	assert.Equal(t, "I'm in England", sender.queries[1])
	assert.False(t, sender.opts[0].Forced)
}

func TestEvaluateClarificationNoSecondTurnWhenAnswered(t *testing.T) {
	sender := &scriptedSender{results: []*agent.SendResult{
		{Text: "Call 0300 100 0601.", State: conversation.Idle},
	}}
	cases := []TestCase{{
		TestID:              "amb2",
		Query:               "student finance contact",
		ExpectedPhone:       "0300 100 0601",
		Ambiguous:           true,
		ClarificationAnswer: "England",
	}}

	rows := Evaluate(context.Background(), factoryFor(sender), cases, ModeClarification)
	require.Len(t, rows, 1)
	assert.Equal(t, "PASS", rows[0].Status)
	assert.Len(t, sender.queries, 1)
}

func TestEvaluateErrorContinuesBatch(t *testing.T) {
	broken := &scriptedSender{err: errors.New("model unavailable")}
	good := &scriptedSender{results: []*agent.SendResult{
		{Text: "Call 0300 200 3310.", State: conversation.Idle},
	}}
	senders := []Sender{broken, good}
	i := 0
	factory := func(context.Context) (Sender, error) {
		s := senders[i]
		i++
		return s, nil
	}

	cases := []TestCase{
		{TestID: "bad", Query: "q1", ExpectedPhone: "0300 200 3310"},
		{TestID: "ok", Query: "q2", ExpectedPhone: "0300 200 3310"},
	}
	rows := Evaluate(context.Background(), factory, cases, ModeForced)
	require.Len(t, rows, 2)
	assert.Equal(t, "ERROR", rows[0].Status)
	assert.Equal(t, "API_ERROR", rows[0].Extracted)
	assert.Equal(t, "PASS", rows[1].Status)
}

func TestEvaluateNoPhoneInAnswer(t *testing.T) {
	sender := &scriptedSender{results: []*agent.SendResult{
		{Text: "I could not find a contact number.", State: conversation.Idle},
	}}
	cases := []TestCase{{TestID: "nf", Query: "q", ExpectedPhone: "0300 200 3310"}}

	rows := Evaluate(context.Background(), factoryFor(sender), cases, ModeForced)
	require.Len(t, rows, 1)
	assert.Equal(t, "FAIL", rows[0].Status)
	assert.Equal(t, PhoneNotFound, rows[0].Extracted)
}

func TestLoadTestCasesCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.csv")
	data := "test_id,query,expected_phone,ambiguous,clarification_answer,topic\n" +
		"t1,How do I contact HMRC?,0300 200 3310,false,,tax\n" +
		"t2,student finance,0300 100 0601,true,England,education\n" +
		",missing id,123,false,,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cases, err := LoadTestCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "t1", cases[0].TestID)
	assert.False(t, cases[0].Ambiguous)
	assert.True(t, cases[1].Ambiguous)
	assert.Equal(t, "England", cases[1].ClarificationAnswer)
	assert.Equal(t, "education", cases[1].Topic)
}

func TestLoadTestCasesCSVAltHeaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.csv")
	data := "uid,question,phone_number\nu1,Where do I renew a passport?,0300 222 0000\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cases, err := LoadTestCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "u1", cases[0].TestID)
	assert.Equal(t, "0300 222 0000", cases[0].ExpectedPhone)
}

func TestLoadTestCasesJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cases.json")
	data := `[{"test_id":"j1","query":"courts contact","expected_phone":"0300 303 0656","ambiguous":true,"clarification_answer":"courts","topic":"justice"}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cases, err := LoadTestCases(path)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "j1", cases[0].TestID)
	assert.True(t, cases[0].Ambiguous)
}
