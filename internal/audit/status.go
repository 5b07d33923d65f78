package audit

// Status represents the lifecycle state of an audit run.
type Status string

// Audit status values persisted in the status store.
const (
	StatusReceived      Status = "received"
	StatusScraping      Status = "scraping"
	StatusAnalyzing     Status = "analyzing"
	StatusGeneratingPDF Status = "generating_pdf"
	StatusSendingEmail  Status = "sending_email"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

var statusRank = map[Status]int{
	StatusReceived:      0,
	StatusScraping:      1,
	StatusAnalyzing:     2,
	StatusGeneratingPDF: 3,
	StatusSendingEmail:  4,
	StatusCompleted:     5,
}

// Statuses lists every status in pipeline order, failed last.
func Statuses() []Status {
	return []Status{
		StatusReceived,
		StatusScraping,
		StatusAnalyzing,
		StatusGeneratingPDF,
		StatusSendingEmail,
		StatusCompleted,
		StatusFailed,
	}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if s == StatusFailed {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvanceTo reports whether moving from s to next keeps the lifecycle monotonic.
// Failed is reachable from every non-terminal status; otherwise next must rank
// strictly after s.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	return statusRank[next] > from
}
