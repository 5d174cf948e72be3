package knowledge

import (
	"fmt"
	"regexp"
	"strings"
)

// ServiceRecord is the structured form of one knowledge base entry. It is
// populated at ingestion time and carried alongside the rendered chunk text,
// so retrieval never has to re-parse LLM-facing text as the source of truth.
type ServiceRecord struct {
	UID         string `json:"uid"`
	ServiceName string `json:"service_name"`
	Department  string `json:"department"`
	PhoneNumber string `json:"phone_number"`
	Topic       string `json:"topic"`
	UserType    string `json:"user_type"`
	Tags        string `json:"tags"`
	URL         string `json:"url"`
	LastUpdate  string `json:"last_update"`
	Description string `json:"description"`
}

// RenderChunk projects the record into the sentence format the embedding and
// generation models see. The "The <field label> is <value>." phrasing is a
// contract shared with ParseChunk and must not drift.
func (r ServiceRecord) RenderChunk() string {
	return fmt.Sprintf(
		"The unique id is %s. The service name is %s. The department is %s. "+
			"The phone number is %s. The topic is %s. The user type is %s. "+
			"The tags are %s. The url is %s. The last time the page was updated is %s. "+
			"The description is %s.",
		r.UID, r.ServiceName, r.Department, r.PhoneNumber, r.Topic,
		r.UserType, r.Tags, r.URL, r.LastUpdate, r.Description,
	)
}

var chunkPatterns = []struct {
	set func(*ServiceRecord, string)
	re  *regexp.Regexp
}{
	{func(r *ServiceRecord, v string) { r.UID = v }, regexp.MustCompile(`(?is)The unique id is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.ServiceName = v }, regexp.MustCompile(`(?is)The service name is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.Department = v }, regexp.MustCompile(`(?is)The department is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.PhoneNumber = v }, regexp.MustCompile(`(?is)The phone number is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.Topic = v }, regexp.MustCompile(`(?is)The topic is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.UserType = v }, regexp.MustCompile(`(?is)The user type is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.Tags = v }, regexp.MustCompile(`(?is)The tags are\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.URL = v }, regexp.MustCompile(`(?is)The url is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.LastUpdate = v }, regexp.MustCompile(`(?is)The last time the page was updated is\s+(.*?)\.(?:\s|$)`)},
	{func(r *ServiceRecord, v string) { r.Description = v }, regexp.MustCompile(`(?is)The description is\s+(.*?)\.(?:\s|$)`)},
}

// ParseChunk recovers structured fields from a rendered chunk. Fields absent
// from the text are left empty. Kept for ingesting pre-rendered chunk data;
// new ingestion paths should populate ServiceRecord directly.
func ParseChunk(chunk string) ServiceRecord {
	var r ServiceRecord
	for _, p := range chunkPatterns {
		if m := p.re.FindStringSubmatch(chunk); m != nil {
			p.set(&r, strings.TrimSpace(m[1]))
		}
	}
	return r
}

// searchText joins the fields used by region detection and lexical overlap.
func (r ServiceRecord) searchText() string {
	return strings.ToLower(strings.Join([]string{
		r.ServiceName, r.Department, r.Tags, r.Description,
	}, " "))
}
