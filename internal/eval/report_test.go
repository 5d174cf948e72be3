package eval

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	results := []CaseResult{
		{
			TestID:    "t1",
			Query:     "how do I contact HMRC",
			Expected:  "0300 200 3310",
			Extracted: "0300 200 3310",
			Status:    "PASS",
			Ambiguous: false,
			Elapsed:   1500 * time.Millisecond,
			Topic:     "tax",
		},
		{
			TestID:    "t2",
			Query:     "student finance",
			Expected:  "0300 100 0601",
			Extracted: PhoneNotFound,
			Status:    "FAIL",
			Ambiguous: true,
		},
	}
	require.NoError(t, WriteReportCSV(path, results))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "test_id", rows[0][0])
	assert.Equal(t, []string{"t1", "how do I contact HMRC", "0300 200 3310", "0300 200 3310", "PASS", "false", "1.50", "tax"}, rows[1])
	assert.Equal(t, "true", rows[2][5])
}

func TestConfusionSummary(t *testing.T) {
	results := []CaseResult{
		{Expected: "0300 200 3310", Extracted: "0300 200 3310"},
		{Expected: "0300 200 3310", Extracted: PhoneNotFound},
		{Expected: "0300 100 0601", Extracted: "0300 100 0601"},
	}
	got := ConfusionSummary(results)
	assert.Contains(t, got, "total cases: 3")
	assert.Contains(t, got, "0300 200 3310")
	assert.Contains(t, got, "NOT_FOUND")
	assert.Contains(t, got, "Overall accuracy: 66.67%")

	assert.Equal(t, "No results.", ConfusionSummary(nil))
}
