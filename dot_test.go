package dnstracer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphWellFormed(t *testing.T) {
	root := NewRootZone()
	resolver := root.findOrCreateResolver("ns.example.com.")
	n := root.findOrCreateName("example.com.")
	n.addResolver("93.184.216.34", resolver)

	lines := root.Graph(nil, false)
	require.NotEmpty(t, lines)
	assert.Equal(t, "digraph dns {", lines[0])
	assert.Equal(t, "}", lines[len(lines)-1])

	joined := strings.Join(lines, "\n")
	assert.Contains(t, joined, `"ns.example.com."`)
	assert.Contains(t, joined, `"93.184.216.34"`)
	assert.Contains(t, joined, "doubleoctagon")
}

func TestGraphErrorsOnlySuppressesNonErrorEndpoints(t *testing.T) {
	root := NewRootZone()
	resolver := root.findOrCreateResolver("ns.example.com.")
	n := root.findOrCreateName("example.com.")
	n.addResolver("93.184.216.34", resolver)
	root.RegisterError("broken.example.com.", errNXDOMAIN, resolver)

	lines := root.Graph(nil, true)
	joined := strings.Join(lines, "\n")

	assert.NotContains(t, joined, "doubleoctagon")
	assert.Contains(t, joined, "NXDOMAIN")
}

func TestGraphSkipsNamedZones(t *testing.T) {
	root := NewRootZone()
	com := root.findOrCreateSubzone("com.")
	rootResolver := root.findOrCreateResolver("root.test.")
	comResolver := com.findOrCreateResolver("a.gtld-servers.net.")
	comResolver.addUp(rootResolver)

	withCom := strings.Join(root.Graph(nil, false), "\n")
	withoutCom := strings.Join(root.Graph([]string{"com."}, false), "\n")

	assert.Contains(t, withCom, `label="com."`)
	assert.NotContains(t, withoutCom, `label="com."`)
}

func TestDotLabelEscaping(t *testing.T) {
	assert.Equal(t, `"a\"b\\c"`, dotLabel(`a"b\c`))
}

func TestGraphSkipFiltersNameResolutionEdges(t *testing.T) {
	root := NewRootZone()
	com := root.findOrCreateSubzone("com.")
	resolver := com.findOrCreateResolver("ns.example.com.")
	n := root.findOrCreateName("example.com.")
	n.addResolver("93.184.216.34", resolver)

	withCom := strings.Join(root.Graph(nil, false), "\n")
	withoutCom := strings.Join(root.Graph([]string{"com."}, false), "\n")

	assert.Contains(t, withCom, `"ns.example.com." -> "93.184.216.34"`)
	assert.NotContains(t, withoutCom, `"ns.example.com." -> "93.184.216.34"`)
}

func TestGraphSkipFiltersEdgesSourcedFromSkippedZone(t *testing.T) {
	root := NewRootZone()
	com := root.findOrCreateSubzone("com.")
	rootResolver := root.findOrCreateResolver("a.root-servers.net.")
	comResolver := com.findOrCreateResolver("a.gtld-servers.net.")
	comResolver.addUp(rootResolver)

	withoutRoot := strings.Join(root.Graph([]string{"."}, false), "\n")

	assert.NotContains(t, withoutRoot, `"a.root-servers.net." -> "a.gtld-servers.net."`)
}
