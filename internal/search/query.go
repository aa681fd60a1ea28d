package search

import "time"

// TextMode selects how free-text terms combine with each other.
// Operator predicates always combine with AND, independent of this.
type TextMode int

const (
	// MatchAll requires every free-text term to match (default).
	MatchAll TextMode = iota
	// MatchAny requires at least one free-text term to match.
	MatchAny
)

// Fields selects which message fields free-text terms are matched
// against.
type Fields struct {
	Sender  bool
	Subject bool
	Body    bool
}

// DefaultFields matches free text against sender, subject, and body.
func DefaultFields() Fields {
	return Fields{Sender: true, Subject: true, Body: true}
}

// Query is the parsed form of a search string: a list of operator
// predicates plus a list of free-text terms. The two groups are ANDed
// together; an empty query matches everything in scope.
type Query struct {
	FromAddrs     []string // substring match against sender address
	SubjectTerms  []string // substring match against subject
	Categories    []string // exact match against smart category
	HasAttachment bool
	After         *time.Time // inclusive lower bound on message date
	Before        *time.Time // exclusive upper bound (start of the day after the stated date)

	TextTerms  []string
	TextMode   TextMode
	TextFields Fields
}

// IsEmpty reports whether the query carries no predicates at all.
func (q *Query) IsEmpty() bool {
	return len(q.FromAddrs) == 0 &&
		len(q.SubjectTerms) == 0 &&
		len(q.Categories) == 0 &&
		!q.HasAttachment &&
		q.After == nil &&
		q.Before == nil &&
		len(q.TextTerms) == 0
}
