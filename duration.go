package scheduler

import (
	"regexp"
	"strconv"
	"time"
)

var durationToken = regexp.MustCompile(`\d+[smhd]`)

var unitFactor = map[byte]time.Duration{
	's': time.Second,
	'm': time.Minute,
	'h': time.Hour,
	'd': 24 * time.Hour,
}

// ParseDurationString sums every `<integer><unit>` token found in s, with
// unit one of s, m, h or d. Text that matches no token is ignored, so a
// malformed string parses to 0 rather than failing.
//
//	ParseDurationString("1h30m") // 90 * time.Minute
//	ParseDurationString("90s")   // 90 * time.Second
//	ParseDurationString("")      // 0
func ParseDurationString(s string) time.Duration {
	var total time.Duration
	for _, token := range durationToken.FindAllString(s, -1) {
		n, err := strconv.Atoi(token[:len(token)-1])
		if err != nil {
			// out of int range. skip like any other junk.
			continue
		}
		total += time.Duration(n) * unitFactor[token[len(token)-1]]
	}
	return total
}
