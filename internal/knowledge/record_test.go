package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderChunkParseChunkRoundTrip(t *testing.T) {
	record := ServiceRecord{
		UID:         "42",
		ServiceName: "Self Assessment Helpline",
		Department:  "HMRC",
		PhoneNumber: "0300 200 3310",
		Topic:       "tax",
		UserType:    "individual",
		Tags:        "tax, self assessment",
		URL:         "https://www.gov.uk/self-assessment",
		LastUpdate:  "2025-01-10",
		Description: "Help with filing a self assessment return",
	}

	got := ParseChunk(record.RenderChunk())
	assert.Equal(t, record, got)
}

func TestParseChunkPartial(t *testing.T) {
	got := ParseChunk("The service name is Child Benefit. The phone number is 0300 200 3100.")
	assert.Equal(t, "Child Benefit", got.ServiceName)
	assert.Equal(t, "0300 200 3100", got.PhoneNumber)
	assert.Empty(t, got.Department)
	assert.Empty(t, got.UID)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 0}, []float64{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
	assert.Zero(t, CosineSimilarity([]float64{1, 0}, []float64{1, 0, 1}))
}

func TestSlotStateLifecycle(t *testing.T) {
	slots := NewSlotState()
	require.False(t, slots.Filled("department"))
	require.Len(t, slots.Missing(), 4)

	slots.UpdateFromCandidate(Candidate{ServiceRecord: ServiceRecord{
		ServiceName: "Courts", Department: "MoJ",
	}})
	assert.True(t, slots.Filled("service_name"))
	assert.True(t, slots.Filled("department"))
	assert.False(t, slots.Filled("user_type"))
	assert.Equal(t, "Courts", slots.Get("service_name"))

	slots.Reset()
	assert.Len(t, slots.Missing(), 4)
}
