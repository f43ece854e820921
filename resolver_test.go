package dnstracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverHasNoIP(t *testing.T) {
	r := &Resolver{Name: "ns.example.com."}
	assert.True(t, r.hasNoIP())

	r.IP = []string{"1.2.3.4"}
	assert.False(t, r.hasNoIP())
}

func TestResolverIsNodata(t *testing.T) {
	r := &Resolver{Name: "ns.example.com."}
	assert.False(t, r.isNodata())

	r.IP = []string{nodataSentinel}
	assert.True(t, r.isNodata())

	r.IP = []string{nodataSentinel, "1.2.3.4"}
	assert.False(t, r.isNodata())
}

func TestResolverAddUpDedups(t *testing.T) {
	child := &Resolver{Name: "ns1.example.com."}
	up := &Resolver{Name: "a.gtld-servers.net."}

	child.addUp(up)
	child.addUp(up)

	assert.Len(t, child.Up, 1)
}
