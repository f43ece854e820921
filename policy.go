package dnstracer

import (
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/net/publicsuffix"
)

// TimeoutPolicy determines the round-trip timeout for a single query.
// qtype is the textual record type ("A", "MX", ...), name is the FQDN being
// queried, and serverAddr is the "ip:port" of the nameserver being asked.
//
// A non-positive duration means DefaultQueryTimeout.
type TimeoutPolicy func(qtype, name, serverAddr string) time.Duration

// DefaultTimeoutPolicy assumes low latency to addresses in privateNets
// (used by the stub-server test harness and by private deployments tracing
// their own infrastructure) and gives those 100ms, everything else the
// full DefaultQueryTimeout.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return defaultTimeoutPolicy
}

func defaultTimeoutPolicy(qtype, name, serverAddr string) time.Duration {
	host, _, err := net.SplitHostPort(serverAddr)
	if err != nil {
		host = serverAddr
	}
	ip := net.ParseIP(host)

	for _, n := range privateNets {
		if n.Contains(ip) {
			return 100 * time.Millisecond
		}
	}

	return DefaultQueryTimeout
}

var privateNets = mustParseCIDRs(
	"10.0.0.0/8",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"172.16.0.0/12",
	"192.0.0.0/24",
	"192.0.2.0/24",
	"192.168.0.0/16",
	"198.18.0.0/15",
	"198.51.100.0/24",
	"203.0.113.0/24",
	"233.252.0.0/24",
	"::1/128",
	"2001:db8::/32",
	"fd00::/8",
	"fe80::/10",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, len(cidrs))
	for i, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(err)
		}
		nets[i] = n
	}
	return nets
}

// CachePolicy decides whether outcome, the response to q, may be reused
// from the in-trace query cache for a subsequent identical question.
type CachePolicy func(q dns.Question, outcome QueryOutcome) bool

// DefaultCachePolicy caches only delegation responses (empty answer,
// authority full of NS records) whose delegated zone is a public suffix
// (see https://publicsuffix.org/) — the TLD/SLD cuts that every trace of a
// sibling name re-walks identically — and caches nothing else, since
// leaf-level answers are rarely shared between the names a single CLI
// invocation traces.
func DefaultCachePolicy() CachePolicy {
	return defaultCachePolicy
}

func defaultCachePolicy(q dns.Question, outcome QueryOutcome) bool {
	if outcome.isError() || len(outcome.Answer) != 0 || len(outcome.Authority) == 0 {
		return false
	}
	for _, rr := range outcome.Authority {
		hdr := rr.Header()
		if hdr.Rrtype != dns.TypeNS {
			return false
		}
		if !isPublicSuffix(hdr.Name) {
			return false
		}
	}
	return true
}

func isPublicSuffix(fqdn string) bool {
	name := strings.TrimSuffix(fqdn, ".")
	s, _ := publicsuffix.PublicSuffix(name)
	return s == name
}
