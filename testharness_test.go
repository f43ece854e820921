package dnstracer

import (
	"net"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// testStubPort is the UDP port every stub server in this package's tests
// listens on. Real nameservers all use :53; tests substitute this port via
// the dnsPort package variable so the client can run unprivileged.
const testStubPort = "15353"

func init() {
	dnsPort = testStubPort
}

// stubServer is a minimal canned-response DNS server: every question it
// knows about maps to a fixed *dns.Msg (Answer/Ns/Extra/Rcode), unlike a
// real nameserver it does no zone-cut reasoning of its own — the test
// itself decides what each server, asked a given question, says.
type stubServer struct {
	mu        sync.Mutex
	responses map[dns.Question]*dns.Msg
	srv       *dns.Server
}

// newStubServer starts a stub nameserver listening on ip:testStubPort/udp.
// It is shut down automatically when the test completes.
func newStubServer(t *testing.T, ip string) *stubServer {
	t.Helper()

	s := &stubServer{responses: map[dns.Question]*dns.Msg{}}

	pc, err := net.ListenPacket("udp", net.JoinHostPort(ip, testStubPort))
	if err != nil {
		t.Fatalf("stub server listen on %s: %v", ip, err)
	}

	s.srv = &dns.Server{PacketConn: pc, Handler: dns.HandlerFunc(s.handle)}

	done := make(chan struct{})
	t.Cleanup(func() {
		close(done)
		s.srv.Shutdown()
	})

	go func() {
		if err := s.srv.ActivateAndServe(); err != nil {
			select {
			case <-done:
			default:
				t.Errorf("stub server on %s: %v", ip, err)
			}
		}
	}()

	return s
}

func (s *stubServer) handle(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)

	if len(r.Question) != 1 {
		m.SetRcode(r, dns.RcodeFormatError)
		w.WriteMsg(m)
		return
	}

	s.mu.Lock()
	canned, ok := s.responses[r.Question[0]]
	s.mu.Unlock()

	if !ok {
		m.SetRcode(r, dns.RcodeNameError)
		w.WriteMsg(m)
		return
	}

	m.Rcode = canned.Rcode
	m.Authoritative = true
	m.Answer = canned.Answer
	m.Ns = canned.Ns
	m.Extra = canned.Extra

	w.WriteMsg(m)
}

// answer registers a plain NOERROR response carrying rrs as the answer
// section for (qname, qtype).
func (s *stubServer) answer(qname string, qtype uint16, rrs ...dns.RR) {
	s.set(qname, qtype, &dns.Msg{Answer: rrs})
}

// delegate registers a referral response for (qname, qtype): an empty
// answer section, ns as the authority section, and glue as the additional
// section.
func (s *stubServer) delegate(qname string, qtype uint16, ns []dns.RR, glue []dns.RR) {
	s.set(qname, qtype, &dns.Msg{Ns: ns, Extra: glue})
}

// nxdomain registers an NXDOMAIN response for (qname, qtype).
func (s *stubServer) nxdomain(qname string, qtype uint16) {
	s.set(qname, qtype, &dns.Msg{MsgHdr: dns.MsgHdr{Rcode: dns.RcodeNameError}})
}

// nodata registers a NOERROR/empty-answer response for (qname, qtype).
func (s *stubServer) nodata(qname string, qtype uint16) {
	s.set(qname, qtype, &dns.Msg{})
}

func (s *stubServer) set(qname string, qtype uint16, msg *dns.Msg) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[dns.Question{Name: dns.Fqdn(qname), Qtype: qtype, Qclass: dns.ClassINET}] = msg
}

func rrA(name, ip string) dns.RR {
	return &dns.A{
		Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 300},
		A:   net.ParseIP(ip),
	}
}

func rrNS(zone, target string) dns.RR {
	return &dns.NS{
		Hdr: dns.RR_Header{Name: dns.Fqdn(zone), Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 300},
		Ns:  dns.Fqdn(target),
	}
}

func rrCNAME(name, target string) dns.RR {
	return &dns.CNAME{
		Hdr:    dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeCNAME, Class: dns.ClassINET, Ttl: 300},
		Target: dns.Fqdn(target),
	}
}

func rrMX(name string, pref uint16, exch string) dns.RR {
	return &dns.MX{
		Hdr:        dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeMX, Class: dns.ClassINET, Ttl: 300},
		Preference: pref,
		Mx:         dns.Fqdn(exch),
	}
}
