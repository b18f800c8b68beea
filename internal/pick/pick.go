// Package pick selects which mailbox message to process. Report mails from the
// supplier carry their business date in the subject line, not in the Date
// header, so selection parses the subject.
package pick

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"

	"tablemail/internal/model"
)

var (
	reYearMonthDay = regexp.MustCompile(`(\d{4})년(\d{1,2})월(\d{1,2})일`)
	reEightDigits  = regexp.MustCompile(`\d{8}`)
	reMonthDay     = regexp.MustCompile(`(\d{1,2})월(\d{1,2})일`)
)

// SubjectDate extracts a YYYYMMDD date from a subject line. Three patterns are
// tried in priority order, first match wins:
//
//  1. "2025년9월4일": explicit year, no calendar check
//  2. a bare 8-digit run, accepted only if it is a valid calendar date
//  3. "9월4일": year assumed to be the current year
//
// Priority is by pattern, not by position in the string: a year-bearing date
// late in the subject beats an 8-digit run at the start.
func SubjectDate(subject string) (string, bool) {
	return subjectDateAt(subject, time.Now())
}

func subjectDateAt(subject string, now time.Time) (string, bool) {
	if m := reYearMonthDay.FindStringSubmatch(subject); m != nil {
		return m[1] + pad2(m[2]) + pad2(m[3]), true
	}

	if s := reEightDigits.FindString(subject); s != "" {
		// Only the first run is considered; an invalid one is skipped,
		// not retried elsewhere in the string.
		if _, err := time.Parse("20060102", s); err == nil {
			return s, true
		}
	}

	if m := reMonthDay.FindStringSubmatch(subject); m != nil {
		return fmt.Sprintf("%d", now.Year()) + pad2(m[1]) + pad2(m[2]), true
	}

	return "", false
}

func pad2(s string) string {
	n, _ := strconv.Atoi(s)
	return fmt.Sprintf("%02d", n)
}

// ByDate returns the first candidate (in input order) whose subject parses to
// exactly target. ok is false if no candidate matches.
func ByDate(candidates []model.Candidate, target string) (model.Candidate, bool) {
	for _, c := range candidates {
		if d, ok := SubjectDate(c.Subject); ok && d == target {
			return c, true
		}
	}
	return model.Candidate{}, false
}

// Latest returns the candidate with the greatest subject date. Candidates whose
// subject does not parse sort as "00000000". The sort is stable, so candidates
// with equal (or absent) dates keep their input order.
func Latest(candidates []model.Candidate) (model.Candidate, bool) {
	if len(candidates) == 0 {
		return model.Candidate{}, false
	}
	sorted := make([]model.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sortKey(sorted[i]) > sortKey(sorted[j])
	})
	return sorted[0], true
}

func sortKey(c model.Candidate) string {
	if d, ok := SubjectDate(c.Subject); ok {
		return d
	}
	return "00000000"
}
