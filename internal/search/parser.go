package search

import (
	"strings"
	"time"
	"unicode"
)

// dateLayout is the accepted format for before:/after: values.
const dateLayout = "2006-01-02"

// operators maps an operator key to a handler that applies its value to
// the query. A handler returns false when the value is not usable, in
// which case the whole token degrades to free text. Adding an operator
// is a table entry, not a control-flow change.
var operators = map[string]func(q *Query, value string) bool{
	"from": func(q *Query, value string) bool {
		if value == "" {
			return false
		}
		q.FromAddrs = append(q.FromAddrs, value)
		return true
	},
	"subject": func(q *Query, value string) bool {
		if value == "" {
			return false
		}
		q.SubjectTerms = append(q.SubjectTerms, value)
		return true
	},
	"category": func(q *Query, value string) bool {
		if value == "" {
			return false
		}
		q.Categories = append(q.Categories, value)
		return true
	},
	"has": func(q *Query, value string) bool {
		if value != "attachment" {
			return false
		}
		q.HasAttachment = true
		return true
	},
	"after": func(q *Query, value string) bool {
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return false
		}
		q.After = &t
		return true
	},
	"before": func(q *Query, value string) bool {
		t, err := time.Parse(dateLayout, value)
		if err != nil {
			return false
		}
		// The stated day is included in the range.
		end := t.AddDate(0, 0, 1)
		q.Before = &end
		return true
	},
}

// Parse parses a query string with the default free-text configuration
// (all fields, AND combination).
func Parse(raw string) *Query {
	return ParseWith(raw, DefaultFields(), MatchAll)
}

// ParseWith parses a query string using the caller-supplied free-text
// field configuration and combination mode. The grammar is tolerant:
// unrecognized key:value tokens and malformed operator values degrade
// to free-text tokens instead of failing.
func ParseWith(raw string, fields Fields, mode TextMode) *Query {
	q := &Query{
		TextMode:   mode,
		TextFields: fields,
	}

	for _, token := range tokenize(raw) {
		key, value, ok := strings.Cut(token, ":")
		if ok {
			if apply, known := operators[strings.ToLower(key)]; known && apply(q, value) {
				continue
			}
		}
		q.TextTerms = append(q.TextTerms, token)
	}

	return q
}

// tokenize splits a query string on whitespace, keeping quoted spans
// together. Quote characters are stripped, so `subject:"Weekly digest"`
// yields the single token `subject:Weekly digest`.
func tokenize(raw string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			inQuote = !inQuote
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()

	return tokens
}
