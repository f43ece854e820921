package dnstracer

import (
	"fmt"
	"sort"
	"strings"
)

// Graph renders the root Zone's trace state as a DOT digraph, one line per
// element of the returned slice, beginning with "digraph dns {" and ending
// with "}". Zones named in skip have their zone-delegation edges omitted.
// When errorsOnly is true, only error nodes and red (anomaly) edges are
// emitted.
func (z *Zone) Graph(skip []string, errorsOnly bool) []string {
	root := z.Root()
	skipSet := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipSet[s] = true
	}

	var lines []string
	lines = append(lines, "digraph dns {", "\trankdir=LR;")

	lines = append(lines, endpointRankLines(root, errorsOnly)...)
	lines = append(lines, nameEdgeLines(root, skipSet, errorsOnly)...)
	lines = append(lines, zoneEdgeLines(root, skipSet, errorsOnly)...)

	lines = append(lines, "}")
	return lines
}

// endpointRankLines emits the same-rank subgraph of final resolution
// endpoints: red boxes for error sentinels, doubleoctagon nodes for real
// addresses (suppressed entirely when errorsOnly).
func endpointRankLines(root *Zone, errorsOnly bool) []string {
	seen := map[string]bool{}
	var endpoints []string
	for _, n := range root.Names {
		for addr := range n.Addresses {
			if seen[addr] {
				continue
			}
			if errorsOnly && !IsErrorDatum(addr) {
				continue
			}
			seen[addr] = true
			endpoints = append(endpoints, addr)
		}
	}
	sort.Strings(endpoints)

	if len(endpoints) == 0 {
		return nil
	}

	lines := []string{"\t{ rank=same;"}
	for _, addr := range endpoints {
		if IsErrorDatum(addr) {
			lines = append(lines, fmt.Sprintf("\t\t%s [shape=box, color=red];", dotLabel(addr)))
		} else if !errorsOnly {
			lines = append(lines, fmt.Sprintf("\t\t%s [shape=doubleoctagon];", dotLabel(addr)))
		}
	}
	lines = append(lines, "\t}")
	return lines
}

// nameEdgeLines emits, for each Name, one edge per (provenance Resolver,
// address) pair, plus red parenthesized edges for siblings that answered
// for this Name but didn't return this particular address. Edges sourced
// from a Resolver whose own Zone is in skip are omitted entirely. When
// errorsOnly, edges to non-error addresses are omitted except the red
// missing-sibling ones.
func nameEdgeLines(root *Zone, skip map[string]bool, errorsOnly bool) []string {
	names := make([]string, 0, len(root.Names))
	for k := range root.Names {
		names = append(names, k)
	}
	sort.Strings(names)

	var lines []string
	for _, nameKey := range names {
		n := root.Names[nameKey]

		allResolvers := map[*Resolver]bool{}
		for _, resolvers := range n.Addresses {
			for _, r := range resolvers {
				allResolvers[r] = true
			}
		}

		addrs := make([]string, 0, len(n.Addresses))
		for a := range n.Addresses {
			addrs = append(addrs, a)
		}
		sort.Strings(addrs)

		for _, addr := range addrs {
			isErr := IsErrorDatum(addr)

			present := map[*Resolver]bool{}
			for _, r := range n.Addresses[addr] {
				present[r] = true
				if skip[r.Zone.Name] || (errorsOnly && !isErr) {
					continue
				}
				color := ""
				if isErr {
					color = " [color=red]"
				}
				lines = append(lines, fmt.Sprintf("\t%s -> %s [label=%s]%s;",
					dotLabel(r.Name), dotLabel(addr), dotLabel(n.Name), color))
			}

			missing := resolversNotIn(allResolvers, present)
			for _, r := range missing {
				if skip[r.Zone.Name] {
					continue
				}
				lines = append(lines, fmt.Sprintf("\t%s -> %s [label=\"(%s)\", color=red];",
					dotLabel(r.Name), dotLabel(addr), n.Name))
			}
		}
	}
	return lines
}

// zoneEdgeLines emits, for every Zone reachable from root (root included,
// minus anything in skip), edges from the parent's delegating Resolvers to
// the zone's own Resolvers, labeled with the zone name. Resolvers that
// delegated to some sibling NS but not this one produce red missing-sibling
// edges. An edge is also omitted when its source (the upstream delegating
// Resolver's own Zone) is in skip, not just when its destination zone is.
// When errorsOnly, only the red missing-sibling edges are emitted.
func zoneEdgeLines(root *Zone, skip map[string]bool, errorsOnly bool) []string {
	zones := make([]*Zone, 0, len(root.Subzones)+1)
	zones = append(zones, root)
	for _, z := range root.Subzones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })

	var lines []string
	for _, zone := range zones {
		if skip[zone.Name] {
			continue
		}

		resolverNames := make([]string, 0, len(zone.Resolvers))
		for rn := range zone.Resolvers {
			resolverNames = append(resolverNames, rn)
		}
		sort.Strings(resolverNames)

		allUp := map[*Resolver]bool{}
		for _, rn := range resolverNames {
			for _, up := range zone.Resolvers[rn].Up {
				allUp[up] = true
			}
		}

		for _, rn := range resolverNames {
			r := zone.Resolvers[rn]
			present := map[*Resolver]bool{}
			for _, up := range r.Up {
				present[up] = true
				if skip[up.Zone.Name] || errorsOnly {
					continue
				}
				lines = append(lines, fmt.Sprintf("\t%s -> %s [label=%s];",
					dotLabel(up.Name), dotLabel(r.Name), dotLabel(zone.Name)))
			}
			for _, up := range resolversNotIn(allUp, present) {
				if skip[up.Zone.Name] {
					continue
				}
				lines = append(lines, fmt.Sprintf("\t%s -> %s [label=\"(%s)\", color=red];",
					dotLabel(up.Name), dotLabel(r.Name), zone.Name))
			}
		}
	}
	return lines
}

func resolversNotIn(all map[*Resolver]bool, present map[*Resolver]bool) []*Resolver {
	var missing []*Resolver
	for r := range all {
		if !present[r] {
			missing = append(missing, r)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Name < missing[j].Name })
	return missing
}

// dotLabel quotes s as a DOT node/edge label, escaping backslashes and
// double quotes.
func dotLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
