package anonymizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "ipv4 zeroes last octet", input: "192.168.1.100", want: "192.168.1.0"},
		{name: "ipv4 already anonymized", input: "192.168.1.0", want: "192.168.1.0"},
		{name: "ipv6 keeps first four groups", input: "2001:0db8:85a3:0000:0000:8a2e:0370:7334", want: "2001:0db8:85a3:0000::"},
		{name: "empty stays empty", input: "", want: ""},
		{name: "garbage passes through", input: "not-an-ip", want: "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.input))
		})
	}
}

func TestAnonymizeIPIdempotent(t *testing.T) {
	once := AnonymizeIP("10.20.30.40")
	assert.Equal(t, once, AnonymizeIP(once))

	once = AnonymizeIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334")
	assert.Equal(t, once, AnonymizeIP(once))
}

func TestAnonymizeUserAgent(t *testing.T) {
	assert.Equal(t, "", AnonymizeUserAgent(""))

	out := AnonymizeUserAgent("Mozilla/5.0 Chrome/120.0.6099.71")
	assert.NotContains(t, out, "5.0")
	assert.NotContains(t, out, "120.0.6099.71")
	assert.Contains(t, out, "x.x")
}

func TestAnonymizeUserAgentTruncates(t *testing.T) {
	long := strings.Repeat("a", 80)
	out := AnonymizeUserAgent(long)
	assert.Len(t, out, maxUserAgentLen+len(truncationMarker))
	assert.True(t, strings.HasSuffix(out, truncationMarker))

	// Re-applying to the truncated result is a no-op.
	assert.Equal(t, out, AnonymizeUserAgent(out))
}
