package eval

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ambiguousRows(n, passing int) []CaseResult {
	rows := make([]CaseResult, 0, n)
	for i := 0; i < n; i++ {
		status := "FAIL"
		if i < passing {
			status = "PASS"
		}
		rows = append(rows, CaseResult{
			TestID:    fmt.Sprintf("case-%02d", i),
			Status:    status,
			Ambiguous: true,
		})
	}
	return rows
}

func TestClarificationSuccessGain(t *testing.T) {
	clar := ambiguousRows(10, 8)
	forced := ambiguousRows(10, 5)

	m, ok := ClarificationSuccessGain(clar, forced)
	require.True(t, ok)
	assert.Equal(t, 10, m.SampleSize)
	assert.InDelta(t, 0.8, m.ClarificationPassRate, 1e-9)
	assert.InDelta(t, 0.5, m.ForcedPassRate, 1e-9)
	assert.InDelta(t, 0.3, m.ClarificationSuccessGain, 1e-9)
}

func TestClarificationSuccessGainIgnoresUnambiguous(t *testing.T) {
	clar := append(ambiguousRows(4, 4),
		CaseResult{TestID: "plain", Status: "FAIL", Ambiguous: false})
	forced := append(ambiguousRows(4, 2),
		CaseResult{TestID: "plain", Status: "PASS", Ambiguous: false})

	m, ok := ClarificationSuccessGain(clar, forced)
	require.True(t, ok)
	assert.Equal(t, 4, m.SampleSize)
	assert.InDelta(t, 0.5, m.ClarificationSuccessGain, 1e-9)
}

func TestClarificationSuccessGainInnerJoin(t *testing.T) {
	clar := []CaseResult{
		{TestID: "a", Status: "PASS", Ambiguous: true},
		{TestID: "only-clar", Status: "PASS", Ambiguous: true},
	}
	forced := []CaseResult{
		{TestID: "a", Status: "FAIL", Ambiguous: true},
		{TestID: "only-forced", Status: "PASS", Ambiguous: true},
	}

	m, ok := ClarificationSuccessGain(clar, forced)
	require.True(t, ok)
	assert.Equal(t, 1, m.SampleSize)
	assert.InDelta(t, 1.0, m.ClarificationSuccessGain, 1e-9)
}

func TestClarificationSuccessGainEmpty(t *testing.T) {
	_, ok := ClarificationSuccessGain(nil, nil)
	assert.False(t, ok)

	_, ok = ClarificationSuccessGain(
		[]CaseResult{{TestID: "a", Status: "PASS", Ambiguous: false}},
		[]CaseResult{{TestID: "a", Status: "PASS", Ambiguous: false}},
	)
	assert.False(t, ok)
}
