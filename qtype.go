package dnstracer

import (
	"strconv"

	"github.com/miekg/dns"
)

// ParseQType accepts either a textual record type ("A", "AAAA", "MX", ...)
// or its numeric DNS code (as a string, e.g. "15" for MX) and returns the
// corresponding dns.Type. An unrecognized value returns ErrUnsupportedQType.
func ParseQType(qtype string) (uint16, error) {
	if t, ok := dns.StringToType[qtype]; ok {
		return t, nil
	}
	if n, err := strconv.ParseUint(qtype, 10, 16); err == nil {
		if _, ok := dns.TypeToString[uint16(n)]; ok {
			return uint16(n), nil
		}
	}
	return 0, ErrUnsupportedQType
}

// qtypeText renders a dns.Type back to its textual form, e.g. "A", "MX".
func qtypeText(qtype uint16) string {
	if s, ok := dns.TypeToString[qtype]; ok {
		return s
	}
	return strconv.Itoa(int(qtype))
}
