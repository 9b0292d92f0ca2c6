package headcount

// Verdict summarizes how the headcount compares with the roster.
type Verdict string

const (
	VerdictMatch         Verdict = "match"
	VerdictMorePresent   Verdict = "more_present"
	VerdictFewerDetected Verdict = "fewer_detected"
	VerdictUnknown       Verdict = "unknown"
)

// Summary is the informational comparison shown to the presenter.
type Summary struct {
	Present     int     `json:"present"`
	Total       int     `json:"total"`
	Headcount   *int    `json:"headcount"`
	Discrepancy *int    `json:"discrepancy"`
	Verdict     Verdict `json:"verdict"`
}

// Reconcile computes headcount minus roster size. A positive discrepancy
// means more people are in the room than scanned in.
func Reconcile(present, total int, headcount *int) Summary {
	s := Summary{Present: present, Total: total, Verdict: VerdictUnknown}
	if headcount == nil {
		return s
	}
	count := *headcount
	diff := count - present
	s.Headcount = &count
	s.Discrepancy = &diff
	switch {
	case diff > 0:
		s.Verdict = VerdictMorePresent
	case diff < 0:
		s.Verdict = VerdictFewerDetected
	default:
		s.Verdict = VerdictMatch
	}
	return s
}
