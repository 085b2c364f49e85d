package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/czubix/scheduler"
)

func TestParseDurationString(t *testing.T) {
	type testCase struct {
		in   string
		want time.Duration
	}

	for _, tc := range []testCase{
		{"1h30m", 90 * time.Minute},
		{"90s", 90 * time.Second},
		{"2m30s", 150 * time.Second},
		{"1d", 24 * time.Hour},
		{"1d12h", 36 * time.Hour},
		{"0s", 0},
		{"", 0},
		{"malformed", 0},
		{"h30", 0},
		// junk between tokens is ignored, matched tokens still count.
		{"1x2s", 2 * time.Second},
		{"10s later, then 1m", 70 * time.Second},
		{"5s5s", 10 * time.Second},
	} {
		require.Equal(t, tc.want, scheduler.ParseDurationString(tc.in), "input %q", tc.in)
	}
}
