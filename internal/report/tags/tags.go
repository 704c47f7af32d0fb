package tags

import (
	"fmt"
	"regexp"
	"sort"
)

const tagRegex = `^\[([a-zA-Z0-9_ -]*)\]`

var reTag = regexp.MustCompile(tagRegex)

// SortedData stores the key/value to be sorted.
type SortedData struct {
	Key   string `json:"tag"`
	Value int    `json:"count"`
}

// SortedList stores the list of key/value map, implementing interfaces
// to sort/rank a map strings with integers as values.
type SortedList []SortedData

func (p SortedList) Len() int      { return len(p) }
func (p SortedList) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p SortedList) Less(i, j int) bool {
	if p[i].Value == p[j].Value {
		// reversed below, so keys end up in ascending order on ties.
		return p[i].Key > p[j].Key
	}
	return p[i].Value < p[j].Value
}

// TestTags counts the tags of test names. The tag is the word extracted from
// the first bracket of a test name, e.g. 'checkout' in '[checkout] pay with card'.
type TestTags struct {
	Total int
	Tags  map[string]int
}

// NewTestTags creates the TestTags populating the tag values and counters.
func NewTestTags(tests []string) *TestTags {
	tt := &TestTags{Tags: make(map[string]int, len(tests))}
	for _, test := range tests {
		tt.Add(test)
	}
	return tt
}

// Add extracts tags from test name, store, and increment the counter.
func (tt *TestTags) Add(test string) {
	match := reTag.FindStringSubmatch(test)
	if len(match) > 0 && match[1] != "" {
		tt.Tags[match[1]] += 1
	}
	tt.Total += 1
}

// Ranked returns the tags ordered by counter.
func (tt *TestTags) Ranked() []SortedData {
	tags := make(SortedList, 0, len(tt.Tags))
	for k, v := range tt.Tags {
		tags = append(tags, SortedData{k, v})
	}
	sort.Sort(sort.Reverse(tags))
	return []SortedData(tags)
}

// ShowSorted return an string with the rank of tags.
func (tt *TestTags) ShowSorted() string {
	return ShowRanked(tt.Total, tt.Ranked())
}

// ShowRanked renders ranked tags as '[total=N] [tag=n (p%)] ...'.
func ShowRanked(total int, ranked []SortedData) string {
	msg := fmt.Sprintf("[total=%d]", total)
	for _, k := range ranked {
		msg = fmt.Sprintf("%s [%v=%s]", msg, k.Key, CalcPercStr(int64(k.Value), int64(total)))
	}
	return msg
}

// CalcPercStr receives the numerator and denominator and return the numerator and percentage as string.
func CalcPercStr(num, den int64) string {
	if den == 0 {
		return fmt.Sprintf("%d (0.00%%)", num)
	}
	return fmt.Sprintf("%d (%.2f%%)", num, (float64(num)/float64(den))*100)
}
