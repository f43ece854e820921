package dnstracer

import "strings"

// isUpwardReferral reports whether an authority record naming zonename,
// observed while querying resolver, is pushing the walk back up the zone
// hierarchy instead of delegating further down it.
//
// This is advisory: the suffix comparison can misfire for sibling zones
// that share a suffix (e.g. example.co.uk. vs co.uk.). The worst case is a
// spurious NXDOMAIN registration, which stays visible in the emitted graph.
func isUpwardReferral(root *Zone, resolver *Resolver, zonename string) bool {
	if _, known := root.Subzones[zonename]; !known {
		return false
	}
	if zonename == resolver.Zone.Name {
		return false
	}
	return strings.HasSuffix(resolver.Zone.Name, zonename)
}

// isEchoReferral reports whether the authority record merely restates the
// zone we already queried resolver in, rather than delegating anywhere.
func isEchoReferral(resolver *Resolver, zonename string) bool {
	return zonename == resolver.Zone.Name
}

// missingGlueResolvers returns the Resolvers of zone whose IP is still
// empty, i.e. nameservers for which no glue was ever observed.
func missingGlueResolvers(zone *Zone) []*Resolver {
	var missing []*Resolver
	for _, r := range zone.Resolvers {
		if r.hasNoIP() {
			missing = append(missing, r)
		}
	}
	return missing
}
