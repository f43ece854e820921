package dnstracer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// serializedResolver is the wire form of a Resolver. Up entries are
// (zone_name, resolver_name) pairs rather than pointers.
type serializedResolver struct {
	Name string     `yaml:"name" json:"name"`
	IP   []string   `yaml:"ip" json:"ip"`
	Up   [][]string `yaml:"up" json:"up"`
}

// serializedZone is the wire form of one non-root Zone.
type serializedZone struct {
	Name      string               `yaml:"name" json:"name"`
	Resolvers []serializedResolver `yaml:"resolvers" json:"resolvers"`
}

// serializedName is the wire form of a Name.
type serializedName struct {
	Name      string                `yaml:"name" json:"name"`
	Addresses map[string][][]string `yaml:"addresses" json:"addresses"`
}

// serializedGraph is the full wire form of a root Zone: its own resolvers,
// every subzone (parent-first topological order), and every Name.
type serializedGraph struct {
	Name      string               `yaml:"name" json:"name"`
	Resolvers []serializedResolver `yaml:"resolvers" json:"resolvers"`
	Zones     []serializedZone     `yaml:"zones" json:"zones"`
	Names     []serializedName     `yaml:"names" json:"names"`
}

// SerializeYAML renders root's full trace state as YAML, per spec.md §4.5.
func SerializeYAML(root *Zone) ([]byte, error) {
	return yaml.Marshal(toSerializedGraph(root))
}

// SerializeJSON renders root's full trace state as JSON.
func SerializeJSON(root *Zone) ([]byte, error) {
	return json.MarshalIndent(toSerializedGraph(root), "", "  ")
}

// DeserializeYAML restores a root Zone from YAML produced by SerializeYAML.
func DeserializeYAML(data []byte) (*Zone, error) {
	var g serializedGraph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
	}
	return fromSerializedGraph(&g)
}

// DeserializeJSON restores a root Zone from JSON produced by SerializeJSON.
func DeserializeJSON(data []byte) (*Zone, error) {
	var g serializedGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
	}
	return fromSerializedGraph(&g)
}

func toSerializedGraph(root *Zone) *serializedGraph {
	g := &serializedGraph{
		Name:      root.Name,
		Resolvers: serializeResolvers(root),
	}

	zoneNames := make([]string, 0, len(root.Subzones))
	for name := range root.Subzones {
		zoneNames = append(zoneNames, name)
	}
	sort.Slice(zoneNames, func(i, j int) bool {
		di, dj := zoneLabelDepth(zoneNames[i]), zoneLabelDepth(zoneNames[j])
		if di != dj {
			return di < dj
		}
		return zoneNames[i] < zoneNames[j]
	})

	for _, name := range zoneNames {
		zone := root.Subzones[name]
		g.Zones = append(g.Zones, serializedZone{
			Name:      zone.Name,
			Resolvers: serializeResolvers(zone),
		})
	}

	nameKeys := make([]string, 0, len(root.Names))
	for k := range root.Names {
		nameKeys = append(nameKeys, k)
	}
	sort.Strings(nameKeys)

	for _, key := range nameKeys {
		n := root.Names[key]
		addrs := make(map[string][][]string, len(n.Addresses))
		for addr, resolvers := range n.Addresses {
			addrs[addr] = resolverRefs(resolvers)
		}
		g.Names = append(g.Names, serializedName{Name: n.Name, Addresses: addrs})
	}

	return g
}

func serializeResolvers(zone *Zone) []serializedResolver {
	names := make([]string, 0, len(zone.Resolvers))
	for name := range zone.Resolvers {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]serializedResolver, 0, len(names))
	for _, name := range names {
		r := zone.Resolvers[name]
		out = append(out, serializedResolver{
			Name: r.Name,
			IP:   r.IP,
			Up:   resolverRefs(r.Up),
		})
	}
	return out
}

func resolverRefs(resolvers []*Resolver) [][]string {
	refs := make([][]string, 0, len(resolvers))
	for _, r := range resolvers {
		refs = append(refs, []string{r.Zone.Name, r.Name})
	}
	return refs
}

// zoneLabelDepth counts the labels in a trailing-dot zone name, with root
// (".") at depth 0. Used to produce a parent-first topological ordering.
func zoneLabelDepth(name string) int {
	if name == "." {
		return 0
	}
	trimmed := strings.TrimSuffix(name, ".")
	return strings.Count(trimmed, ".") + 1
}

func fromSerializedGraph(g *serializedGraph) (*Zone, error) {
	root := NewRootZone()
	root.Name = g.Name
	if root.Name == "" {
		root.Name = "."
	}

	for _, sr := range g.Resolvers {
		r := root.findOrCreateResolver(sr.Name)
		r.IP = sr.IP
	}

	for _, sz := range g.Zones {
		zone := root.findOrCreateSubzone(sz.Name)
		for _, sr := range sz.Resolvers {
			r := zone.findOrCreateResolver(sr.Name)
			r.IP = sr.IP
		}
	}

	resolverLookup := func(zoneName, resolverName string) (*Resolver, error) {
		var zone *Zone
		if zoneName == root.Name {
			zone = root
		} else {
			zone = root.Subzones[zoneName]
		}
		if zone == nil {
			return nil, fmt.Errorf("%w: zone %q not declared", ErrMalformedGraph, zoneName)
		}
		r, ok := zone.Resolvers[resolverName]
		if !ok {
			return nil, fmt.Errorf("%w: resolver %q not declared in zone %q", ErrMalformedGraph, resolverName, zoneName)
		}
		return r, nil
	}

	linkUp := func(r *Resolver, refs [][]string) error {
		for _, ref := range refs {
			if len(ref) != 2 {
				return fmt.Errorf("%w: malformed up reference for resolver %q", ErrMalformedGraph, r.Name)
			}
			up, err := resolverLookup(ref[0], ref[1])
			if err != nil {
				return err
			}
			r.addUp(up)
		}
		return nil
	}

	for _, sr := range g.Resolvers {
		r := root.Resolvers[sr.Name]
		if err := linkUp(r, sr.Up); err != nil {
			return nil, err
		}
	}
	for _, sz := range g.Zones {
		zone := root.Subzones[sz.Name]
		for _, sr := range sz.Resolvers {
			r := zone.Resolvers[sr.Name]
			if err := linkUp(r, sr.Up); err != nil {
				return nil, err
			}
		}
	}

	for _, sn := range g.Names {
		n := root.findOrCreateName(sn.Name)
		for addr, refs := range sn.Addresses {
			for _, ref := range refs {
				if len(ref) != 2 {
					return nil, fmt.Errorf("%w: malformed provenance reference for name %q", ErrMalformedGraph, sn.Name)
				}
				r, err := resolverLookup(ref[0], ref[1])
				if err != nil {
					return nil, err
				}
				n.addResolver(addr, r)
			}
		}
	}

	return root, nil
}
