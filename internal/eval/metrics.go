package eval

// Metrics summarizes a paired forced/clarification run.
type Metrics struct {
	ClarificationPassRate    float64
	ForcedPassRate           float64
	ClarificationSuccessGain float64
	SampleSize               int
}

// ClarificationSuccessGain measures how much a clarifying turn improves
// accuracy. Only cases flagged ambiguous in both tables count, after an inner
// join on test id; pass rates are computed independently per table. Returns
// ok=false when either filtered table is empty.
func ClarificationSuccessGain(clarification, forced []CaseResult) (Metrics, bool) {
	ambiguousIDs := func(rows []CaseResult) map[string]CaseResult {
		out := make(map[string]CaseResult)
		for _, row := range rows {
			if row.Ambiguous {
				out[row.TestID] = row
			}
		}
		return out
	}

	clarRows := ambiguousIDs(clarification)
	forcedRows := ambiguousIDs(forced)

	var clarPass, forcedPass, n int
	for id, cr := range clarRows {
		fr, ok := forcedRows[id]
		if !ok {
			continue
		}
		n++
		if cr.Status == "PASS" {
			clarPass++
		}
		if fr.Status == "PASS" {
			forcedPass++
		}
	}
	if n == 0 {
		return Metrics{}, false
	}

	clarRate := float64(clarPass) / float64(n)
	forcedRate := float64(forcedPass) / float64(n)
	return Metrics{
		ClarificationPassRate:    clarRate,
		ForcedPassRate:           forcedRate,
		ClarificationSuccessGain: clarRate - forcedRate,
		SampleSize:               n,
	}, true
}
