package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"swedish mobile without prefix", "070-123 45 67", "+46701234567"},
		{"already e164", "+46701234567", "+46701234567"},
		{"international with spaces", "+31 6 12345678", "+31612345678"},
		{"blank", "   ", ""},
		{"garbage kept trimmed", "  call me  ", "call me"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeE164(tc.in))
		})
	}
}

func TestNormalizeE164InRegion(t *testing.T) {
	assert.Equal(t, "+31612345678", NormalizeE164In("06 12345678", "NL"))
}
