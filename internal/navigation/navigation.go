// Package navigation turns the instrument's URL change events into issued
// queries and result-page depth observations.
//
// The search interface encodes its state in the URL fragment as
// "<page>-<query>", with the query percent-encoded twice, e.g.
//
//	http://localhost:8080/?#3-climate%2520change
package navigation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/harrison/serpstudy/internal/events"
)

var serpPattern = regexp.MustCompile(`^https?://[0-9./a-z-]+\?#([0-9]+)-(.*)$`)

// Decision is the outcome of comparing a navigation event's previous and new
// result page.
type Decision int

const (
	// Unparseable: neither URL is a result page. Nothing is recorded.
	Unparseable Decision = iota
	// FirstQuery: a result page reached from a non-result page. Records the
	// query and a depth-1 view.
	FirstQuery
	// NewQuery: the query fragment changed between two result pages. Records
	// the query and a depth-1 view.
	NewQuery
	// SameQueryPage: same query, different page. Records the new depth.
	SameQueryPage
	// LeftResults: moved from a result page to something else. Nothing is
	// recorded.
	LeftResults
)

func (d Decision) String() string {
	switch d {
	case FirstQuery:
		return "first-query"
	case NewQuery:
		return "new-query"
	case SameQueryPage:
		return "same-query-page"
	case LeftResults:
		return "left-results"
	default:
		return "unparseable"
	}
}

// Records reports whether the decision produces a page-depth observation.
func (d Decision) Records() bool {
	return d == FirstQuery || d == NewQuery || d == SameQueryPage
}

// IssuesQuery reports whether the decision issues a query.
func (d Decision) IssuesQuery() bool {
	return d == FirstQuery || d == NewQuery
}

// Page is a parsed result page address.
type Page struct {
	Depth    int
	Fragment string
}

// ParsePage extracts the page depth and raw query fragment from a result page
// URL.
func ParsePage(rawURL string) (Page, bool) {
	m := serpPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return Page{}, false
	}
	depth, err := strconv.Atoi(m[1])
	if err != nil {
		return Page{}, false
	}
	return Page{Depth: depth, Fragment: m[2]}, true
}

// Observation is the result of interpreting one navigation event.
type Observation struct {
	Event    *events.Event
	Decision Decision
	Query    string
	Depth    int
}

// Decide interprets a single navigation event.
func Decide(e *events.Event) Observation {
	obs := Observation{Event: e}
	prev, prevOK := ParsePage(e.Details.PreviousURL)
	next, nextOK := ParsePage(e.Details.NewURL)

	switch {
	case prevOK && nextOK && prev.Fragment == next.Fragment:
		obs.Decision = SameQueryPage
		obs.Depth = next.Depth
	case prevOK && nextOK:
		obs.Decision = NewQuery
		obs.Query = DecodeQuery(next.Fragment)
		obs.Depth = 1
	case prevOK:
		obs.Decision = LeftResults
	case nextOK:
		obs.Decision = FirstQuery
		obs.Query = DecodeQuery(next.Fragment)
		obs.Depth = 1
	default:
		obs.Decision = Unparseable
	}
	return obs
}

// Result is the navigation summary of one session.
type Result struct {
	Queries      []string
	Depths       []int
	Observations []Observation
}

// Skipped counts events that produced no page-depth observation.
func (r *Result) Skipped() int {
	n := 0
	for _, o := range r.Observations {
		if !o.Decision.Records() {
			n++
		}
	}
	return n
}

// Parse interprets the ordered navigation events of one session.
func Parse(navs []*events.Event) *Result {
	r := &Result{Observations: make([]Observation, 0, len(navs))}
	for _, e := range navs {
		obs := Decide(e)
		r.Observations = append(r.Observations, obs)
		if obs.Decision.IssuesQuery() {
			r.Queries = append(r.Queries, obs.Query)
		}
		if obs.Decision.Records() {
			r.Depths = append(r.Depths, obs.Depth)
		}
	}
	return r
}

// DecodeQuery undoes the instrument's double percent-encoding.
func DecodeQuery(fragment string) string {
	return unquote(unquote(fragment))
}

// unquote decodes every well-formed %XX escape and leaves malformed ones in
// place. Invalid UTF-8 produced by decoding is replaced with U+FFFD.
func unquote(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]) {
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
			continue
		}
		b.WriteByte(s[i])
	}
	out := b.String()
	if !utf8.ValidString(out) {
		out = strings.ToValidUTF8(out, "�")
	}
	return out
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
