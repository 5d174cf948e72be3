package knowledge

import (
	"fmt"
	"sort"
	"strings"
)

// regionKeywords maps UK-nation labels to loose synonyms used for substring
// matching over candidate text.
var regionKeywords = []struct {
	label    string
	synonyms []string
}{
	{"england", []string{"england", "english", "dfe", "uk"}},
	{"northern ireland", []string{"ni", "northern ireland"}},
	{"scotland", []string{"scotland", "scottish"}},
	{"wales", []string{"wales", "welsh"}},
}

// questionRegions is the variant used when phrasing a region question; it
// separates UK-wide services from England-only ones.
var questionRegions = []struct {
	label    string
	synonyms []string
}{
	{"england", []string{"england", "english", "dfe"}},
	{"Northern Ireland", []string{"ni", "northern ireland"}},
	{"Scotland", []string{"scotland", "scottish"}},
	{"Wales", []string{"wales", "welsh"}},
	{"UK-wide", []string{"uk", "united kingdom"}},
}

func candidateRegions(c Candidate) []string {
	text := c.searchText()
	var hits []string
	for _, region := range regionKeywords {
		for _, syn := range region.synonyms {
			if strings.Contains(text, syn) {
				hits = append(hits, region.label)
				break
			}
		}
	}
	return hits
}

func slotValue(c Candidate, slot string) string {
	switch slot {
	case "service_name":
		return c.ServiceName
	case "department":
		return c.Department
	case "user_type":
		return c.UserType
	case "tags":
		return c.Tags
	}
	return ""
}

// NeedsDisambiguation reports whether multiple close-scoring candidates could
// plausibly be chosen. All four conditions must hold: at least two candidates,
// a small score gap between the top two, at least two strong candidates, and
// more than one distinct (service, department, user type) triple. The triple
// check stops near-duplicate chunks of the same service from triggering
// spurious clarification.
func (s *CandidateScorer) NeedsDisambiguation(candidates []Candidate) bool {
	if len(candidates) < 2 {
		return false
	}

	topScore := candidates[0].Score
	secondScore := candidates[1].Score
	gap := topScore - secondScore
	if gap < 0 {
		gap = -gap
	}

	strong := 0
	for _, c := range candidates {
		if c.Score >= s.cfg.StrongThreshold {
			strong++
		}
	}

	triples := map[[3]string]bool{}
	for _, c := range candidates {
		if c.ServiceName == "" {
			continue
		}
		triples[[3]string{c.ServiceName, c.Department, c.UserType}] = true
	}

	return gap <= s.cfg.AmbiguityGap && strong >= 2 && len(triples) > 1
}

// BuildConfidenceHint flags a confident single match so the model can skip
// clarification. Returned text is a prompt hint, not an enforced gate.
func (s *CandidateScorer) BuildConfidenceHint(candidates []Candidate) string {
	if len(candidates) == 0 {
		return ""
	}

	topScore := candidates[0].Score
	secondScore := 0.0
	if len(candidates) > 1 {
		secondScore = candidates[1].Score
	}
	margin := topScore - secondScore

	strongAndClearMargin := topScore >= s.cfg.ConfidentScore && margin >= s.cfg.ConfidentMargin
	singleStrong := len(candidates) == 1 && topScore >= s.cfg.ConfidentScore
	if !strongAndClearMargin && !singleStrong {
		return ""
	}

	c := candidates[0]
	service := c.ServiceName
	if service == "" {
		service = "one service"
	}
	parts := []string{fmt.Sprintf("Single strong match: %s", service)}
	if c.Department != "" {
		parts = append(parts, fmt.Sprintf("department: %s", c.Department))
	}
	parts = append(parts,
		fmt.Sprintf("score=%.2f, margin=%.2f", topScore, margin),
		"Skip clarifications and call the tool immediately with the user's query.",
	)
	return strings.Join(parts, ". ")
}

// BuildDisambiguationQuestion crafts a concise question to pick between close
// matches. Returns empty when no disambiguation is needed. Priority: region
// split first, then the highest-priority unfilled slot with divergent values
// among the top three candidates, then a two-option listing.
func (s *CandidateScorer) BuildDisambiguationQuestion(candidates []Candidate, slots *SlotState) string {
	if !s.NeedsDisambiguation(candidates) {
		return ""
	}

	top3 := candidates
	if len(top3) > 3 {
		top3 = top3[:3]
	}

	distinctValues := map[string][]string{}
	for _, slot := range slotPriority {
		var seen []string
		for _, c := range top3 {
			v := strings.TrimSpace(slotValue(c, slot))
			if v == "" {
				continue
			}
			dup := false
			for _, s := range seen {
				if s == v {
					dup = true
					break
				}
			}
			if !dup {
				seen = append(seen, v)
			}
		}
		distinctValues[slot] = seen
	}

	targetSlot := ""
	for _, slot := range slotPriority {
		if !slots.Filled(slot) && len(distinctValues[slot]) > 1 {
			targetSlot = slot
			break
		}
	}
	if targetSlot == "" {
		for _, slot := range slotPriority {
			if len(distinctValues[slot]) > 1 {
				targetSlot = slot
				break
			}
		}
	}

	if targetSlot != "" {
		examples := strings.Join(firstN(distinctValues[targetSlot], 2), " or ")

		var regionHits []string
		for _, c := range top3 {
			text := strings.ToLower(strings.Join([]string{c.ServiceName, c.Department, c.Tags}, " "))
			for _, region := range questionRegions {
				if containsString(regionHits, region.label) {
					continue
				}
				for _, syn := range region.synonyms {
					if strings.Contains(text, syn) {
						regionHits = append(regionHits, region.label)
						break
					}
				}
			}
		}
		if len(regionHits) > 1 {
			topRegions := strings.Join(firstN(regionHits, 2), " or ")
			return fmt.Sprintf("Are you based in %s? That decides which contact to give you.", topRegions)
		}

		switch targetSlot {
		case "department":
			return fmt.Sprintf("Which department does this relate to? For example: %s.", examples)
		case "user_type":
			return fmt.Sprintf("Are you asking as %s? That helps me pick the right contact.", examples)
		case "tags":
			return fmt.Sprintf("Which topic best fits this request (%s)?", examples)
		case "service_name":
			return fmt.Sprintf("Which service name matches best: %s?", examples)
		}
	}

	var options []string
	for _, c := range candidates {
		if len(options) >= 2 {
			break
		}
		service := strings.TrimSpace(c.ServiceName)
		if service == "" {
			service = "this service"
		}
		var details []string
		if d := strings.TrimSpace(c.Department); d != "" {
			details = append(details, fmt.Sprintf("department: %s", d))
		}
		if u := strings.TrimSpace(c.UserType); u != "" {
			details = append(details, fmt.Sprintf("user type: %s", u))
		}
		if t := strings.TrimSpace(c.Tags); t != "" {
			details = append(details, fmt.Sprintf("tags: %s", t))
		}
		if len(details) > 0 {
			service += fmt.Sprintf(" (%s)", strings.Join(details, "; "))
		}
		options = append(options, service)
	}
	return fmt.Sprintf("I found a couple of close matches: %s. Which one fits your request?",
		strings.Join(options, " or "))
}

// SelectCandidateFromClarification resolves the user's free-text answer to one
// of the given candidates. Region mentions win, then lexical word overlap
// tie-broken by retrieval score; with zero overlap the top-ranked candidate is
// returned, so the result is always drawn from the input.
func (s *CandidateScorer) SelectCandidateFromClarification(userText string, candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	userLower := strings.ToLower(userText)

	bestRegionIdx, bestRegionScore := -1, 0
	for i, c := range candidates {
		score := 0
		for _, region := range candidateRegions(c) {
			if strings.Contains(userLower, region) {
				score += 2
			}
		}
		if score > bestRegionScore {
			bestRegionIdx, bestRegionScore = i, score
		}
	}
	if bestRegionIdx >= 0 {
		return candidates[bestRegionIdx], true
	}

	overlap := func(c Candidate) int {
		words := map[string]bool{}
		for _, w := range clarWordRe.FindAllString(c.searchText(), -1) {
			words[w] = true
		}
		n := 0
		for w := range words {
			if strings.Contains(userLower, w) {
				n++
			}
		}
		return n
	}

	type scored struct {
		overlap int
		idx     int
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{overlap: overlap(c), idx: i}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].overlap != ranked[j].overlap {
			return ranked[i].overlap > ranked[j].overlap
		}
		return candidates[ranked[i].idx].Score > candidates[ranked[j].idx].Score
	})

	if ranked[0].overlap > 0 {
		return candidates[ranked[0].idx], true
	}
	return candidates[0], true
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
