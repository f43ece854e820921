package dnstracer

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/miekg/dns"
)

// rootServerLabels are the 13 letter-labels of the root server hostnames,
// a.root-servers.net. through m.root-servers.net.
var rootServerLabels = []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m"}

// Tracer walks the DNS delegation hierarchy starting from the root,
// recording every Zone, Resolver and Name it observes. It holds no
// per-trace state itself; each call to Trace builds a fresh root Zone and a
// scoped session.
type Tracer struct {
	// Logger receives structured progress events. Defaults to a
	// logrus.Logger at InfoLevel if nil.
	Logger fieldLogger

	// TimeoutPolicy computes the per-query timeout. Defaults to
	// DefaultTimeoutPolicy.
	TimeoutPolicy TimeoutPolicy

	// CachePolicy decides which query outcomes may be reused from the
	// in-trace query cache. Defaults to DefaultCachePolicy.
	CachePolicy CachePolicy

	// TraceMissingGlue and EvenTraceMGtldServersNet configure every Zone
	// created by this Tracer. See spec.md §3/§4.3.
	TraceMissingGlue         bool
	EvenTraceMGtldServersNet bool
}

// NewTracer returns a Tracer configured with sane defaults.
func NewTracer() *Tracer {
	return &Tracer{
		Logger:        defaultLogger(),
		TimeoutPolicy: DefaultTimeoutPolicy(),
		CachePolicy:   DefaultCachePolicy(),
	}
}

// session holds everything scoped to a single top-level Trace call: the
// root Zone being built, the DNS client (with its query cache), and a
// logger stamped with a per-run ID.
type session struct {
	root   *Zone
	client *client
	log    fieldLogger
	// traced remembers (name, qtype) pairs already scheduled as CNAME/MX/SRV
	// follow-ups in this run, so that follow-up scheduling never retraces
	// the same target twice.
	traced map[tracedKey]bool
}

type tracedKey struct {
	name  string
	qtype uint16
}

func (t *Tracer) newSession(root *Zone) *session {
	log := t.Logger
	if log == nil {
		log = defaultLogger()
	}
	runID := uuid.Must(uuid.NewV7()).String()
	log = log.WithFields(logFields{"run": runID})

	return &session{
		root:   root,
		client: newClient(t.TimeoutPolicy, t.CachePolicy, newQueryCache(), log),
		log:    log,
		traced: map[tracedKey]bool{},
	}
}

// Trace resolves name (qtype given as text, e.g. "A", "MX", or a numeric
// code) starting from a freshly seeded root Zone, and returns that Zone
// once the walk is complete. A non-nil error means a fatal, non-DNS
// condition stopped the trace. For an unrecognized qtype no walk starts and
// the returned Zone is nil; for an answer record type this tracer cannot
// interpret, the returned Zone still holds everything observed before the
// abort.
func (t *Tracer) Trace(ctx context.Context, name string, qtype string) (*Zone, error) {
	qt, err := ParseQType(qtype)
	if err != nil {
		return nil, err
	}

	root := NewRootZone()
	root.TraceMissingGlue = t.TraceMissingGlue
	root.EvenTraceMGtldServersNet = t.EvenTraceMGtldServersNet

	s := t.newSession(root)
	name = dns.Fqdn(name)

	if err := t.traceZone(ctx, s, root, name, qt); err != nil {
		return root, err
	}
	return root, nil
}

// RootServersBootstrap seeds root's 13 Resolvers (a..m.root-servers.net.)
// and resolves each one's address via the operating system's configured
// resolvers. It is called automatically by Trace the first time the root
// Zone is walked with no Resolvers yet, but is exported so callers building
// a root Zone by hand (e.g. the codec, or tests) can invoke it directly.
func (t *Tracer) RootServersBootstrap(ctx context.Context, root *Zone) error {
	s := t.newSession(root)
	return t.bootstrapRootServers(ctx, s, root)
}

func (t *Tracer) bootstrapRootServers(ctx context.Context, s *session, root *Zone) error {
	for _, label := range rootServerLabels {
		hostname := label + ".root-servers.net."
		r := root.findOrCreateResolver(hostname)
		if !r.hasNoIP() {
			continue
		}
		ips, err := systemResolve(ctx, hostname)
		if err != nil {
			s.log.WithFields(logFields{"resolver": hostname}).Warn("root server bootstrap failed: " + err.Error())
			continue
		}
		r.IP = ips
	}
	return nil
}

// traceZone resolves name/qtype through every Resolver of zone, in
// name-sorted order, registering everything observed into zone's root.
func (t *Tracer) traceZone(ctx context.Context, s *session, zone *Zone, name string, qtype uint16) error {
	if zone.IsRoot() && len(zone.Resolvers) == 0 {
		if err := t.bootstrapRootServers(ctx, s, zone); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(zone.Resolvers))
	for n := range zone.Resolvers {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		resolver := zone.Resolvers[n]
		if _, err := t.resolve(ctx, s, resolver, name, qtype, true); err != nil {
			return err
		}
	}
	return nil
}

// zoneResolveNonRegistering picks a Resolver of zone (preferring one with
// known glue, for determinism the first such in name-sorted order) and
// resolves name/qtype through it without registering anything into the
// graph, returning whatever address keys that walk produced.
func (t *Tracer) zoneResolveNonRegistering(ctx context.Context, s *session, zone *Zone, name string, qtype uint16) ([]string, error) {
	if zone.IsRoot() && len(zone.Resolvers) == 0 {
		if err := t.bootstrapRootServers(ctx, s, zone); err != nil {
			return nil, err
		}
	}

	if n, ok := s.root.Names[strings.ToLower(name)]; ok {
		return addressKeys(n), nil
	}

	names := make([]string, 0, len(zone.Resolvers))
	for n := range zone.Resolvers {
		names = append(names, n)
	}
	sort.Strings(names)

	var chosen *Resolver
	for _, n := range names {
		r := zone.Resolvers[n]
		if !r.hasNoIP() {
			chosen = r
			break
		}
	}
	if chosen == nil && len(names) > 0 {
		chosen = zone.Resolvers[names[0]]
	}
	if chosen == nil {
		return nil, nil
	}

	return t.resolve(ctx, s, chosen, name, qtype, false)
}

// resolve is the heart of the walk: it ensures resolver has a usable IP
// (chasing glue if necessary), issues one query through it, and dispatches
// the outcome to processAuthority or processAnswer. When register is true
// every observation is written into s.root; when false, nothing is
// registered and the caller only cares about the returned address keys.
func (t *Tracer) resolve(ctx context.Context, s *session, resolver *Resolver, name string, qtype uint16, register bool) ([]string, error) {
	name = dns.Fqdn(name)

	if resolver.hasNoIP() {
		if err := t.resolveNameserverIP(ctx, s, resolver, name); err != nil {
			return nil, err
		}
		if len(resolver.IP) == 1 && resolver.IP[0] == noGlueSentinel {
			// The nameserver's own name is in flight and it has no glue:
			// stop without querying or registering anything.
			resolver.IP = nil
			return nil, nil
		}
		if resolver.hasNoIP() || resolver.isNodata() {
			if register {
				s.root.RegisterError(name, errNODATA, resolver)
			}
			return nil, nil
		}
	}

	s.log.WithFields(logFields{
		"resolver": resolver.Name,
		"server":   resolver.IP[0],
		"name":     name,
		"qtype":    qtypeText(qtype),
		"register": register,
	}).Debug("query")

	outcome := s.client.query(ctx, resolver.IP[0], name, qtype)

	if outcome.isError() {
		if register {
			s.root.RegisterError(name, outcome.errKind(), resolver)
		}
		return nil, nil
	}

	if len(outcome.Answer) == 0 {
		return t.processAuthority(ctx, s, resolver, name, qtype, outcome, register)
	}
	return t.processAnswer(ctx, s, resolver, name, qtype, outcome, register)
}

// resolveNameserverIP implements the glue-acquisition branches of
// spec.md §4.3's Resolve algorithm for a Resolver with no known IP yet.
// name is the name currently being resolved (not resolver.Zone.Name): a
// nameserver can legitimately be the sole, glueless resolver of some other
// zone than the one currently being traced, and only a coincidence with the
// name actually in flight should short-circuit to the "no glue" sentinel —
// otherwise a misconfigured delegation (a nameserver that is its own zone's
// only glueless resolver) recurses through zoneResolveNonRegistering/resolve
// forever.
func (t *Tracer) resolveNameserverIP(ctx context.Context, s *session, resolver *Resolver, name string) error {
	zone := resolver.Zone

	if resolver.Name == name {
		resolver.IP = []string{noGlueSentinel}
		return nil
	}

	skipMTldServers := resolver.Name == "m.gtld-servers.net." && !zone.EvenTraceMGtldServersNet

	if zone.TraceMissingGlue && !skipMTldServers {
		if err := t.traceZone(ctx, s, s.root, resolver.Name, dns.TypeA); err != nil {
			return err
		}
		if n, ok := s.root.Names[strings.ToLower(resolver.Name)]; ok {
			resolver.IP = addressKeys(n)
		}
		return nil
	}

	ips, err := t.zoneResolveNonRegistering(ctx, s, s.root, resolver.Name, dns.TypeA)
	if err != nil {
		return err
	}
	resolver.IP = ips
	return nil
}

// processAuthority implements spec.md §4.3's referral handling: detecting
// upward/echo referrals, creating the delegated-to Zone and its Resolvers,
// populating glue from the additional section, and continuing the walk.
func (t *Tracer) processAuthority(ctx context.Context, s *session, resolver *Resolver, name string, qtype uint16, outcome QueryOutcome, register bool) ([]string, error) {
	var newzone *Zone

	for _, rr := range outcome.Authority {
		zonename := strings.ToLower(rr.Header().Name)

		if isUpwardReferral(s.root, resolver, zonename) || isEchoReferral(resolver, zonename) {
			if register {
				s.root.RegisterError(name, errNXDOMAIN, resolver)
			}
			return nil, nil
		}

		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}

		var zone *Zone
		if register {
			zone = s.root.findOrCreateSubzone(zonename)
		} else if newzone != nil && newzone.Name == zonename {
			zone = newzone
		} else {
			zone = newChildZone(s.root, zonename)
		}
		newzone = zone

		target := strings.ToLower(ns.Ns)
		r := zone.findOrCreateResolver(target)
		r.addUp(resolver)
	}

	if newzone == nil {
		if register {
			s.root.RegisterError(name, errNODATA, resolver)
		}
		return nil, nil
	}

	glue := map[string][]string{}
	for _, rr := range outcome.Additional {
		rname := strings.ToLower(rr.Header().Name)
		if _, ok := newzone.Resolvers[rname]; !ok {
			continue
		}
		switch a := rr.(type) {
		case *dns.A:
			glue[rname] = append(glue[rname], a.A.String())
		case *dns.AAAA:
			if haveIPv6() {
				glue[rname] = append(glue[rname], a.AAAA.String())
			}
		}
	}
	for rname, ips := range glue {
		newzone.Resolvers[rname].IP = ips
	}

	if !register {
		return t.zoneResolveNonRegistering(ctx, s, newzone, name, qtype)
	}

	if _, already := s.root.Names[strings.ToLower(name)]; !already {
		if err := t.traceZone(ctx, s, newzone, name, qtype); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// processAnswer implements spec.md §4.3's answer handling: recording each
// answer record's datum against its owner Name, and scheduling follow-up
// Trace calls for CNAME/MX/SRV indirection.
func (t *Tracer) processAnswer(ctx context.Context, s *session, resolver *Resolver, name string, qtype uint16, outcome QueryOutcome, register bool) ([]string, error) {
	origName := strings.ToLower(name)
	local := map[string]*Name{}

	type followup struct {
		name  string
		qtype uint16
	}
	var followups []followup

	for _, rr := range outcome.Answer {
		rname := strings.ToLower(rr.Header().Name)

		n, ok := local[rname]
		if !ok {
			if existing, ok := s.root.Names[rname]; ok && register {
				n = existing
			} else {
				n = &Name{Name: rname, Addresses: map[string][]*Resolver{}}
			}
			local[rname] = n
		}

		switch rec := rr.(type) {
		case *dns.A:
			n.addResolver(rec.A.String(), resolver)
		case *dns.AAAA:
			n.addResolver(rec.AAAA.String(), resolver)
		case *dns.CNAME:
			target := strings.ToLower(rec.Target)
			n.addResolver(target, resolver)
			followups = append(followups, followup{target, qtype})
		case *dns.MX:
			target := strings.ToLower(rec.Mx)
			n.addResolver(target, resolver)
			followups = append(followups, followup{target, dns.TypeA})
		case *dns.SRV:
			target := strings.ToLower(rec.Target)
			n.addResolver(target, resolver)
			followups = append(followups, followup{target, dns.TypeA})
		case *dns.PTR:
			n.addResolver(strings.ToLower(rec.Ptr), resolver)
		case *dns.TXT:
			n.addResolver(strings.Join(rec.Txt, " "), resolver)
		case *dns.SOA:
			n.addResolver(rrValue(rec), resolver)
		default:
			return nil, ErrUnknownRecordType
		}
	}

	if !register {
		if n, ok := local[origName]; ok {
			return addressKeys(n), nil
		}
		return nil, nil
	}

	for k, v := range local {
		s.root.Names[k] = v
	}

	for _, f := range followups {
		key := tracedKey{name: f.name, qtype: f.qtype}
		if s.traced[key] {
			continue
		}
		if _, already := s.root.Names[f.name]; already {
			continue
		}
		s.traced[key] = true
		if err := t.traceZone(ctx, s, s.root, f.name, f.qtype); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

// addressKeys returns the keys of n.Addresses, in sorted order for
// deterministic output.
func addressKeys(n *Name) []string {
	keys := make([]string, 0, len(n.Addresses))
	for k := range n.Addresses {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// rrValue renders an RR's data portion, stripping the header that
// dns.RR.String() always prefixes.
func rrValue(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
