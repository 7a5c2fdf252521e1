package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/serpstudy/internal/events"
	et "github.com/harrison/serpstudy/internal/events/eventtest"
)

const landing = "http://localhost:8080/"

func serp(depth, fragment string) string {
	return "http://localhost:8080/?#" + depth + "-" + fragment
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		url    string
		want   Page
		wantOK bool
	}{
		{serp("1", "cats"), Page{Depth: 1, Fragment: "cats"}, true},
		{"https://search.example-lab.org/app/?#12-a%2520b", Page{Depth: 12, Fragment: "a%2520b"}, true},
		{serp("2", ""), Page{Depth: 2, Fragment: ""}, true},
		{landing, Page{}, false},
		{"http://localhost:8080/?#x-cats", Page{}, false},
		{"ftp://localhost/?#1-cats", Page{}, false},
		{"http://LOCALHOST/?#1-cats", Page{}, false},
		{"", Page{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := ParsePage(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		next     string
		want     Observation
	}{
		{
			name:     "same query, next page",
			previous: serp("1", "cats"),
			next:     serp("3", "cats"),
			want:     Observation{Decision: SameQueryPage, Depth: 3},
		},
		{
			name:     "query changed",
			previous: serp("2", "cats"),
			next:     serp("1", "dogs%2520and%2520cats"),
			want:     Observation{Decision: NewQuery, Query: "dogs and cats", Depth: 1},
		},
		{
			name:     "left results",
			previous: serp("2", "cats"),
			next:     landing,
			want:     Observation{Decision: LeftResults},
		},
		{
			name:     "first query from landing",
			previous: landing,
			next:     serp("1", "cats"),
			want:     Observation{Decision: FirstQuery, Query: "cats", Depth: 1},
		},
		{
			name:     "first query without previous url",
			previous: "",
			next:     serp("4", "cats"),
			want:     Observation{Decision: FirstQuery, Query: "cats", Depth: 1},
		},
		{
			name:     "neither parses",
			previous: landing,
			next:     "http://localhost:8080/about",
			want:     Observation{Decision: Unparseable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := et.Nav("p1", 0, tt.previous, tt.next)
			got := Decide(e)
			tt.want.Event = e
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_SameFragmentPagesOneThenThree(t *testing.T) {
	navs := []*events.Event{
		et.Nav("p1", 10, landing, serp("1", "cats")),
		et.Nav("p1", 20, serp("1", "cats"), serp("3", "cats")),
	}

	r := Parse(navs)

	assert.Equal(t, []string{"cats"}, r.Queries)
	assert.Equal(t, []int{1, 3}, r.Depths)
	assert.Equal(t, 0, r.Skipped())
}

func TestParse_MixedSequence(t *testing.T) {
	navs := []*events.Event{
		et.Nav("p1", 10, landing, serp("1", "climate")),
		et.Nav("p1", 20, serp("1", "climate"), serp("2", "climate")),
		et.Nav("p1", 30, serp("2", "climate"), landing),
		et.Nav("p1", 40, landing, "http://localhost:8080/help"),
		et.Nav("p1", 50, landing, serp("1", "climate%2520change")),
		et.Nav("p1", 60, serp("1", "climate%2520change"), serp("1", "sea%2520level")),
	}

	r := Parse(navs)

	assert.Equal(t, []string{"climate", "climate change", "sea level"}, r.Queries)
	assert.Equal(t, []int{1, 2, 1, 1}, r.Depths)
	assert.Equal(t, 2, r.Skipped())
	require.Len(t, r.Observations, 6)
	assert.Equal(t, LeftResults, r.Observations[2].Decision)
	assert.Equal(t, Unparseable, r.Observations[3].Decision)
}

func TestParse_DepthsAtLeastQueries(t *testing.T) {
	navs := []*events.Event{
		et.Nav("p1", 10, "", serp("1", "a")),
		et.Nav("p1", 20, serp("1", "a"), serp("1", "b")),
		et.Nav("p1", 30, serp("1", "b"), serp("5", "b")),
		et.Nav("p1", 40, serp("5", "b"), "http://other/"),
	}

	r := Parse(navs)

	assert.GreaterOrEqual(t, len(r.Depths), len(r.Queries))
}

func TestParse_Empty(t *testing.T) {
	r := Parse(nil)
	assert.Empty(t, r.Queries)
	assert.Empty(t, r.Depths)
	assert.Equal(t, 0, r.Skipped())
}

func TestDecodeQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"two%2520words", "two words"},
		{"caf%25C3%25A9", "café"},
		{"100%25%2520sure", "100% sure"},
		{"broken%zz", "broken%zz"},
		{"trailing%2", "trailing%2"},
		{"a+b", "a+b"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeQuery(tt.in))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "first-query", FirstQuery.String())
	assert.Equal(t, "same-query-page", SameQueryPage.String())
	assert.Equal(t, "unparseable", Unparseable.String())
	assert.True(t, NewQuery.IssuesQuery())
	assert.False(t, SameQueryPage.IssuesQuery())
	assert.False(t, LeftResults.Records())
}
