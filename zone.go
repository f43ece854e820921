package dnstracer

import "strings"

// Zone represents a DNS zone: a node in the delegation hierarchy with its
// own set of authoritative nameservers.
//
// Only the root Zone (Name == ".") owns Subzones and Names; every other Zone
// is reachable from the root through Subzones.
type Zone struct {
	Name      string
	Resolvers map[string]*Resolver

	root *Zone

	// TraceMissingGlue and EvenTraceMGtldServersNet are read-only after
	// construction and inherited from root.
	TraceMissingGlue         bool
	EvenTraceMGtldServersNet bool

	// Subzones and Names are populated only on the root Zone.
	Subzones map[string]*Zone
	Names    map[string]*Name
}

// NewRootZone returns a freshly constructed root Zone ("."), ready to be
// passed to Tracer.Trace.
func NewRootZone() *Zone {
	z := &Zone{
		Name:      ".",
		Resolvers: map[string]*Resolver{},
		Subzones:  map[string]*Zone{},
		Names:     map[string]*Name{},
	}
	z.root = z
	return z
}

// Root returns the root Zone that owns this Zone's Subzones/Names indexes.
func (z *Zone) Root() *Zone {
	return z.root
}

// IsRoot reports whether z is the distinguished root zone.
func (z *Zone) IsRoot() bool {
	return z.root == z
}

// newChildZone creates a Zone subordinate to root, inheriting root's
// configuration flags. It is not registered in root.Subzones; callers that
// want the Zone to be discoverable from root must do that themselves
// (findOrCreateSubzone does both).
func newChildZone(root *Zone, name string) *Zone {
	return &Zone{
		Name:                     name,
		Resolvers:                map[string]*Resolver{},
		root:                     root,
		TraceMissingGlue:         root.TraceMissingGlue,
		EvenTraceMGtldServersNet: root.EvenTraceMGtldServersNet,
	}
}

// findOrCreateSubzone returns the registered Zone named name, creating and
// registering it under root.Subzones if it doesn't exist yet. Only valid to
// call on the root Zone.
func (z *Zone) findOrCreateSubzone(name string) *Zone {
	if !z.IsRoot() {
		panic("findOrCreateSubzone called on a non-root zone")
	}
	if zone, ok := z.Subzones[name]; ok {
		return zone
	}
	zone := newChildZone(z, name)
	z.Subzones[name] = zone
	return zone
}

// findOrCreateResolver returns the Resolver named name within z, creating it
// (with empty IP) if it doesn't already exist.
func (z *Zone) findOrCreateResolver(name string) *Resolver {
	if r, ok := z.Resolvers[name]; ok {
		return r
	}
	r := &Resolver{
		Zone: z,
		Name: name,
	}
	z.Resolvers[name] = r
	return r
}

// findOrCreateName returns the Name keyed by fqdn (lowercased) in the root
// Zone's Names index, creating it if necessary. Only valid to call on the
// root Zone.
func (z *Zone) findOrCreateName(fqdn string) *Name {
	if !z.IsRoot() {
		panic("findOrCreateName called on a non-root zone")
	}
	fqdn = strings.ToLower(fqdn)
	if n, ok := z.Names[fqdn]; ok {
		return n
	}
	n := &Name{Name: fqdn, Addresses: map[string][]*Resolver{}}
	z.Names[fqdn] = n
	return n
}

// RegisterError finds-or-creates the Name for nameFQDN, finds-or-creates the
// errKind entry in its Addresses map, and appends resolver to its provenance
// list, skipping the append if resolver is already present.
//
// Must be called on the root Zone.
func (z *Zone) RegisterError(nameFQDN string, errKind string, resolver *Resolver) {
	n := z.findOrCreateName(nameFQDN)
	n.addResolver(errKind, resolver)
}
