package knowledge

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadRecordsCSV reads the knowledge base CSV into structured records.
// The file must carry a header row naming at least uid, service_name,
// department and phone_number; unrecognised columns are ignored.
func LoadRecordsCSV(path string) ([]ServiceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	defer f.Close()

	return ReadRecords(f)
}

// ReadRecords parses CSV knowledge base rows from the given reader.
func ReadRecords(r io.Reader) ([]ServiceRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"uid", "service_name", "department", "phone_number"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("knowledge base csv missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []ServiceRecord
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		records = append(records, ServiceRecord{
			UID:         field(row, "uid"),
			ServiceName: field(row, "service_name"),
			Department:  field(row, "department"),
			PhoneNumber: field(row, "phone_number"),
			Topic:       field(row, "topic"),
			UserType:    field(row, "user_type"),
			Tags:        field(row, "tags"),
			URL:         field(row, "url"),
			LastUpdate:  field(row, "last_update"),
			Description: field(row, "description"),
		})
	}
	return records, nil
}
