package errorcounter

import (
	"regexp"
	"sync"
)

// CommonErrorPatterns are the failure signatures usually found in the
// details of UI and API automation reports.
var CommonErrorPatterns = []string{
	`Exception`,
	`AssertionError`,
	`[Tt]ime(d)? ?out`,
	`NoSuchElement`,
	`StaleElementReference`,
	`ElementNotInteractable`,
	`expected .* but (was|found|got)`,
	`Connection refused`,
	`FAIL(ED)?:`,
}

var (
	reCacheMu sync.Mutex
	reCache   = map[string]*regexp.Regexp{}
)

func compile(pattern string) *regexp.Regexp {
	reCacheMu.Lock()
	defer reCacheMu.Unlock()
	if re, ok := reCache[pattern]; ok {
		return re
	}
	re := regexp.MustCompile(pattern)
	reCache[pattern] = re
	return re
}

// Counter is a map to handle a generic error counter, indexed by error pattern.
type Counter map[string]int

// New counts the occurrences of each pattern, and the generic `error`, in buf.
// It returns nil when nothing matched.
func New(buf *string, pattern []string) Counter {
	if buf == nil {
		return nil
	}
	total := 0
	counters := make(Counter, len(pattern)+2)

	for _, errName := range append(append([]string{}, pattern...), `error`) {
		if matches := compile(errName).FindAllStringIndex(*buf, -1); len(matches) != 0 {
			counters[errName] += len(matches)
			total += len(matches)
		}
	}

	if total == 0 {
		return nil
	}
	counters["total"] = total
	return counters
}

// Merge sums two counters into a new one.
func Merge(ec1, ec2 *Counter) *Counter {
	merged := make(Counter, len(CommonErrorPatterns))
	if ec1 == nil && ec2 == nil {
		return &merged
	}
	if ec2 == nil {
		return ec1
	}
	if ec1 == nil {
		return ec2
	}
	for kerr, cnt := range *ec1 {
		merged[kerr] += cnt
	}
	for kerr, cnt := range *ec2 {
		merged[kerr] += cnt
	}
	return &merged
}
