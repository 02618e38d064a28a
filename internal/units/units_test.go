package units_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/askiada/gdcpq/internal/units"
)

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input    int64
		expected string
	}{
		"zero":      {input: 0, expected: "0.00 B"},
		"bytes":     {input: 1023, expected: "1023.00 B"},
		"kilobytes": {input: 1536, expected: "1.50 KB"},
		"megabytes": {input: 5 * 1024 * 1024, expected: "5.00 MB"},
		"gigabytes": {input: 3 << 30, expected: "3.00 GB"},
		"terabytes": {input: 2 << 40, expected: "2.00 TB"},
		"petabytes": {input: 4 << 50, expected: "4.00 PB"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, units.FormatSize(tc.input))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		input    time.Duration
		expected string
	}{
		"sub second": {input: 300 * time.Millisecond, expected: "0.3s"},
		"seconds":    {input: 42500 * time.Millisecond, expected: "42.5s"},
		"minutes":    {input: 5*time.Minute + 7*time.Second, expected: "5m 7s"},
		"hours":      {input: 2*time.Hour + 30*time.Minute + 59*time.Second, expected: "2h 30m"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, units.FormatDuration(tc.input))
		})
	}
}
