package dnstracer

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultQueryTimeout is the fixed per-query timeout the DNS Client uses
// when no TimeoutPolicy override applies.
const DefaultQueryTimeout = 2 * time.Second

// dnsPort is the port every query is sent to. It is a variable, rather than
// a literal "53" inlined below, purely so tests can point the client at an
// unprivileged stub server port.
var dnsPort = "53"

// outcomeKind classifies a QueryOutcome.
type outcomeKind int

const (
	outcomeAnswered outcomeKind = iota
	outcomeNXDOMAIN
	outcomeSERVFAIL
	outcomeTIMEOUT
)

// QueryOutcome is the result of a single, non-recursive query to one
// nameserver IP.
type QueryOutcome struct {
	Kind       outcomeKind
	Answer     []dns.RR
	Authority  []dns.RR
	Additional []dns.RR
}

func (o QueryOutcome) isError() bool {
	return o.Kind != outcomeAnswered
}

// errKind returns the Name.Addresses sentinel corresponding to a non-answer
// outcome. Panics if called on an Answered outcome.
func (o QueryOutcome) errKind() string {
	switch o.Kind {
	case outcomeNXDOMAIN:
		return errNXDOMAIN
	case outcomeSERVFAIL:
		return errSERVFAIL
	case outcomeTIMEOUT:
		return errTIMEOUT
	default:
		panic("errKind called on an answered outcome")
	}
}

// client issues one-shot, non-recursive DNS queries. It never follows
// CNAMEs and never consults more than one server address.
type client struct {
	timeoutPolicy TimeoutPolicy
	cachePolicy   CachePolicy
	cache         *queryCache
	log           fieldLogger
}

func newClient(timeoutPolicy TimeoutPolicy, cachePolicy CachePolicy, cache *queryCache, log fieldLogger) *client {
	if timeoutPolicy == nil {
		timeoutPolicy = DefaultTimeoutPolicy()
	}
	if cachePolicy == nil {
		cachePolicy = DefaultCachePolicy()
	}
	return &client{timeoutPolicy: timeoutPolicy, cachePolicy: cachePolicy, cache: cache, log: log}
}

// query sends a single query for name/qtype to serverIP (the only address
// that is tried), with c.timeoutPolicy determining the round-trip deadline.
func (c *client) query(ctx context.Context, serverIP string, name string, qtype uint16) QueryOutcome {
	q := dns.Question{Name: dns.CanonicalName(name), Qtype: qtype, Qclass: dns.ClassINET}

	if c.cache != nil {
		if outcome, ok := c.cache.get(serverIP, q); ok {
			c.log.WithFields(logFields{"server": serverIP, "name": name}).Debug("query cache hit")
			return outcome
		}
	}

	m := new(dns.Msg)
	m.Question = []dns.Question{q}
	m.RecursionDesired = false

	addr := net.JoinHostPort(serverIP, dnsPort)

	timeout := c.timeoutPolicy(qtypeText(qtype), name, addr)
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	dc := new(dns.Client)
	dc.Timeout = timeout

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, _, err := dc.ExchangeContext(ctx, m, addr)

	outcome := classifyResponse(resp, err)

	if c.cache != nil && c.cachePolicy(q, outcome) {
		c.cache.put(serverIP, q, outcome)
	}

	return outcome
}

func classifyResponse(resp *dns.Msg, err error) QueryOutcome {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return QueryOutcome{Kind: outcomeTIMEOUT}
		}
		return QueryOutcome{Kind: outcomeSERVFAIL}
	}

	switch resp.Rcode {
	case dns.RcodeNameError:
		return QueryOutcome{Kind: outcomeNXDOMAIN}
	case dns.RcodeServerFailure, dns.RcodeRefused:
		return QueryOutcome{Kind: outcomeSERVFAIL}
	case dns.RcodeSuccess:
		return QueryOutcome{
			Kind:       outcomeAnswered,
			Answer:     resp.Answer,
			Authority:  resp.Ns,
			Additional: resp.Extra,
		}
	default:
		return QueryOutcome{Kind: outcomeSERVFAIL}
	}
}
