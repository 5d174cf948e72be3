package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRecords(t *testing.T) {
	data := "uid,service_name,department,phone_number,topic,user_type,tags,url,last_update,description\n" +
		"1,Self Assessment,HMRC,0300 200 3310,tax,individual,\"tax, returns\",https://www.gov.uk/self-assessment,2025-01-10,Help with returns\n" +
		"2,Child Benefit,HMRC,0300 200 3100,,,,,,\n"

	records, err := ReadRecords(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Self Assessment", records[0].ServiceName)
	assert.Equal(t, "tax, returns", records[0].Tags)
	assert.Equal(t, "0300 200 3100", records[1].PhoneNumber)
	assert.Empty(t, records[1].Topic)
}

func TestReadRecordsMissingColumn(t *testing.T) {
	data := "uid,service_name\n1,Courts\n"
	_, err := ReadRecords(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone_number")
}

func TestReadRecordsRaggedRows(t *testing.T) {
	data := "uid,service_name,department,phone_number,topic\n" +
		"1,Courts,MoJ,0300 303 0656\n"

	records, err := ReadRecords(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Topic)
}
