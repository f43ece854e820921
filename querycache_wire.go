package dnstracer

import (
	"github.com/miekg/dns"

	"github.com/classmarkets/dnstracer/querycache"
)

// maxQueryCacheSize bounds the in-trace query cache so a run against a
// pathologically large zone can't grow memory without bound.
const maxQueryCacheSize = 10_000

type queryCacheKey struct {
	serverIP string
	q        dns.Question
}

// queryCache memoizes DNS Client exchanges for the lifetime of one Tracer
// run, keyed by server/question pair. Only outcomes that the client's
// CachePolicy admits are stored; every other exchange is repeated.
type queryCache struct {
	inner *querycache.Cache[queryCacheKey, QueryOutcome]
}

func newQueryCache() *queryCache {
	return &queryCache{inner: querycache.New[queryCacheKey, QueryOutcome](maxQueryCacheSize)}
}

func (c *queryCache) get(serverIP string, q dns.Question) (QueryOutcome, bool) {
	return c.inner.Get(queryCacheKey{serverIP: serverIP, q: q})
}

func (c *queryCache) put(serverIP string, q dns.Question, outcome QueryOutcome) {
	c.inner.Put(queryCacheKey{serverIP: serverIP, q: q}, outcome)
}
