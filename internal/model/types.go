package model

import "time"

// Candidate is one mailbox entry under consideration for selection.
// Date is the raw Date header value and is not guaranteed to parse;
// selection keys off the subject instead.
type Candidate struct {
	ID      string
	Subject string
	From    string
	Date    string
}

// Email holds the fetched body of the selected message.
type Email struct {
	ID         string
	From       string
	Subject    string
	Date       string
	HTML       string
	Text       string
	TablesHTML []string // outer HTML of each <table> in the body, document order
}

// HasHTML reports whether the message carried an HTML body.
func (e *Email) HasHTML() bool { return e.HTML != "" }

// HasTables reports whether any <table> was found in the HTML body.
func (e *Email) HasTables() bool { return len(e.TablesHTML) > 0 }

// RunResult is the structured outcome of one pipeline invocation.
type RunResult struct {
	Success     bool
	Message     string
	InputFile   string
	OutputFiles []string
	Elapsed     time.Duration
	Err         error
}

// RunRecord is what the run ledger persists about an invocation.
type RunRecord struct {
	StartedAt   time.Time
	MessageID   string
	Subject     string
	SubjectDate string
	Success     bool
	Message     string
	OutputFiles []string
	Elapsed     time.Duration
}
