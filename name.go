package dnstracer

// Name represents a queried DNS name and what each contacted Resolver said
// about it.
//
// Addresses maps an observed response datum (a final IP, a CNAME/MX/SRV
// target, a TXT/SOA/PTR payload, or one of the error sentinels) to the
// sequence of Resolvers that returned exactly that datum.
type Name struct {
	Name      string
	Addresses map[string][]*Resolver
}

// Error sentinels used as Name.Addresses keys.
const (
	errNXDOMAIN = "NXDOMAIN"
	errSERVFAIL = "SERVFAIL"
	errTIMEOUT  = "TIMEOUT"
	errNODATA   = "NODATA"

	nodataSentinel = "NODATA"
)

var errorSentinels = map[string]bool{
	errNXDOMAIN: true,
	errSERVFAIL: true,
	errTIMEOUT:  true,
	errNODATA:   true,
}

// IsErrorDatum reports whether addr is one of the error sentinel values
// rather than a real resolution datum.
func IsErrorDatum(addr string) bool {
	return errorSentinels[addr]
}

// addResolver appends resolver to n.Addresses[addr], finding-or-creating the
// slot and skipping the append if resolver is already present for addr.
func (n *Name) addResolver(addr string, resolver *Resolver) {
	for _, existing := range n.Addresses[addr] {
		if existing == resolver {
			return
		}
	}
	n.Addresses[addr] = append(n.Addresses[addr], resolver)
}
