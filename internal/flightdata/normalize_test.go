package flightdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFlightNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"OO5331", "UA5331"},
		{"OO 5331", "UA5331"},
		{"oo5331", "UA5331"},
		{"SKW5331", "UA5331"},
		{"UAX104", "UA104"},
		{"YV6012", "UA6012"},
		{"AWI3842", "UA3842"},
		{"UA2402", "UA2402"},   // mainline untouched
		{"DL1234", "DL1234"},   // unrelated carrier untouched
		{"5331", "5331"},       // bare number untouched
		{"CHARTER", "CHARTER"}, // no digits, untouched
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeFlightNumber(tc.in), "input %q", tc.in)
	}
}
