package estimator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{125 * time.Second, "2m 5s"},
		{5430 * time.Second, "1h 30m"},
		{0, "0s"},
		{59 * time.Second, "59s"},
		{60 * time.Second, "1m 0s"},
		{3600 * time.Second, "1h 0m"},
		{3661 * time.Second, "1h 1m"},
		{26*time.Hour + 5*time.Minute, "26h 5m"},
		{1500 * time.Millisecond, "1s"},
		{-10 * time.Second, "0s"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatDuration(tc.in), "%v", tc.in)
	}
}
