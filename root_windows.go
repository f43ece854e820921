package dnstracer

import (
	"context"
	"errors"
)

// systemResolve is unimplemented on Windows: there is no stable equivalent
// of /etc/resolv.conf to parse. See:
// - https://gist.github.com/moloch--/9fb1c8497b09b45c840fe93dd23b1e98
// - https://github.com/miekg/dns/issues/334
func systemResolve(ctx context.Context, name string) ([]string, error) {
	return nil, errors.New("dnstracer: root server bootstrap is unsupported on windows")
}
