package dnstracer

import (
	"context"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyResponseAnswered(t *testing.T) {
	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeSuccess
	resp.Answer = []dns.RR{rrA("example.com.", "1.2.3.4")}

	outcome := classifyResponse(resp, nil)
	assert.False(t, outcome.isError())
	assert.Len(t, outcome.Answer, 1)
}

func TestClassifyResponseNXDOMAIN(t *testing.T) {
	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeNameError

	outcome := classifyResponse(resp, nil)
	require.True(t, outcome.isError())
	assert.Equal(t, errNXDOMAIN, outcome.errKind())
}

func TestClassifyResponseSERVFAIL(t *testing.T) {
	resp := &dns.Msg{}
	resp.Rcode = dns.RcodeServerFailure

	outcome := classifyResponse(resp, nil)
	require.True(t, outcome.isError())
	assert.Equal(t, errSERVFAIL, outcome.errKind())
}

func TestClientQueryUsesCache(t *testing.T) {
	srv := newStubServer(t, "127.0.0.9")
	srv.answer("cached.example.com.", dns.TypeA, rrA("cached.example.com.", "9.9.9.9"))

	alwaysCache := func(dns.Question, QueryOutcome) bool { return true }

	cache := newQueryCache()
	c := newClient(DefaultTimeoutPolicy(), alwaysCache, cache, defaultLogger())

	first := c.query(context.Background(), "127.0.0.9", "cached.example.com.", dns.TypeA)
	require.False(t, first.isError())

	q := dns.Question{Name: dns.CanonicalName("cached.example.com."), Qtype: dns.TypeA, Qclass: dns.ClassINET}
	_, hit := cache.get("127.0.0.9", q)
	assert.True(t, hit)
}
