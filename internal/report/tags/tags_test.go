package tags

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validTests(testDesc string) []string {
	tests := []string{}
	prefix := "tag"
	max := 5

	for i := 1; i <= max; i++ {
		for x := (max - i); x >= 0; x-- {
			tests = append(tests, fmt.Sprintf("[%s-%d] %s ID %d", prefix, i, testDesc, i))
		}
	}
	return tests
}

func TestShowSorted(t *testing.T) {
	cases := []struct {
		name  string
		tests []string
		want  string
	}{
		{
			name:  "ranked",
			tests: validTests("TestShowSorted"),
			want:  "[total=15] [tag-1=5 (33.33%)] [tag-2=4 (26.67%)] [tag-3=3 (20.00%)] [tag-4=2 (13.33%)] [tag-5=1 (6.67%)]",
		},
		{
			name:  "untagged tests only count the total",
			tests: []string{"login works", "logout works"},
			want:  "[total=2]",
		},
		{
			name:  "ties ordered by name",
			tests: []string{"[b] one", "[a] two"},
			want:  "[total=2] [a=1 (50.00%)] [b=1 (50.00%)]",
		},
		{
			name:  "empty",
			tests: []string{},
			want:  "[total=0]",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testTags := NewTestTags(tc.tests)
			assert.Equal(t, tc.want, testTags.ShowSorted(), "unexpected message")
		})
	}
}

func TestRanked(t *testing.T) {
	tt := NewTestTags(nil)
	tt.Add("[cart] add item")
	tt.Add("[cart] remove item")
	tt.Add("[search] by name")

	got := tt.Ranked()
	assert.Equal(t, []SortedData{{Key: "cart", Value: 2}, {Key: "search", Value: 1}}, got)
	assert.Equal(t, 3, tt.Total)
}

func TestTotalTagIsCounted(t *testing.T) {
	tt := NewTestTags([]string{"[total] foo", "[cart] bar"})

	assert.Equal(t, 2, tt.Total)
	assert.Equal(t, []SortedData{{Key: "cart", Value: 1}, {Key: "total", Value: 1}}, tt.Ranked())
	assert.Equal(t, "[total=2] [cart=1 (50.00%)] [total=1 (50.00%)]", tt.ShowSorted())
}

func TestCalcPercStr(t *testing.T) {
	assert.Equal(t, "1 (50.00%)", CalcPercStr(1, 2))
	assert.Equal(t, "3 (0.00%)", CalcPercStr(3, 0))
}
