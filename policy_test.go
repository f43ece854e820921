package dnstracer

import (
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

func TestDefaultCachePolicy(t *testing.T) {
	q := dns.Question{Qtype: dns.TypeA, Name: "bbc.co.uk."}

	cases := []struct {
		name      string
		authority []dns.RR
		answer    []dns.RR
		want      bool
	}{
		{
			name:      "delegation to a public suffix is cacheable",
			authority: []dns.RR{rrNS("uk.", "nsa.nic.uk.")},
			want:      true,
		},
		{
			name:      "delegation to a non-public-suffix zone is not cacheable",
			authority: []dns.RR{rrNS("bbc.co.uk.", "dns1.bbc.co.uk.")},
			want:      false,
		},
		{
			name: "multiple NS all delegating to the same public suffix is cacheable",
			authority: []dns.RR{
				rrNS("uk.", "nsa.nic.uk."),
				rrNS("uk.", "nsb.nic.uk."),
			},
			want: true,
		},
		{
			name: "mixed public-suffix and non-public-suffix delegation is not cacheable",
			authority: []dns.RR{
				rrNS("uk.", "nsa.nic.uk."),
				rrNS("bbc.co.uk.", "dns1.bbc.co.uk."),
			},
			want: false,
		},
		{
			name:   "a real answer is never cacheable",
			answer: []dns.RR{rrA("bbc.co.uk.", "1.2.3.4")},
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := QueryOutcome{Kind: outcomeAnswered, Answer: tc.answer, Authority: tc.authority}
			assert.Equal(t, tc.want, defaultCachePolicy(q, outcome))
		})
	}
}

func TestDefaultTimeoutPolicyPrivateNetsAreFast(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, defaultTimeoutPolicy("A", "example.com.", "127.0.0.1:53"))
	assert.Equal(t, 100*time.Millisecond, defaultTimeoutPolicy("A", "example.com.", "10.1.2.3:53"))
}

func TestDefaultTimeoutPolicyPublicAddressesGetFullTimeout(t *testing.T) {
	assert.Equal(t, DefaultQueryTimeout, defaultTimeoutPolicy("A", "example.com.", "93.184.216.34:53"))
}
