//go:build !windows
// +build !windows

package dnstracer

import (
	"context"
	"errors"
	"fmt"

	"github.com/miekg/dns"
)

// systemResolve queries the operating system's configured nameservers
// (parsed from /etc/resolv.conf) for the A record of name, returning the
// addresses found in the answer. This is the one exception to "no
// recursion" the tracer allows: the addresses of the a..m.root-servers.net
// hostnames must come from somewhere.
func systemResolve(ctx context.Context, name string) ([]string, error) {
	config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil {
		return nil, fmt.Errorf("dnstracer: cannot determine system resolvers: %w", err)
	}

	c := new(dns.Client)
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, srv := range config.Servers {
		resp, _, err := c.ExchangeContext(ctx, m, srv+":"+config.Port)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("dnstracer: system resolver %s: %s", srv, dns.RcodeToString[resp.Rcode])
			continue
		}

		var ips []string
		for _, rr := range resp.Answer {
			if a, ok := rr.(*dns.A); ok {
				ips = append(ips, a.A.String())
			}
		}
		if len(ips) > 0 {
			return ips, nil
		}
		lastErr = errors.New("dnstracer: system resolver returned no A records")
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("dnstracer: no system resolvers configured")
}
