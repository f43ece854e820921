package dnstracer

import "errors"

// ErrUnknownRecordType is returned when ProcessAnswer encounters an answer
// record of a type this tracer does not know how to interpret. This is a
// programming/data error, not a DNS-level condition, and it aborts the
// Trace call rather than being registered into the graph.
var ErrUnknownRecordType = errors.New("dnstracer: unknown record type in answer section")

// ErrMalformedGraph is returned by the codec when deserialized input cannot
// be parsed, holds a zone/resolver reference that is not a two-element pair,
// or references a zone or resolver that was never declared.
var ErrMalformedGraph = errors.New("dnstracer: malformed serialized graph")

// ErrUnsupportedQType is returned when Trace is called with a qtype this
// tracer does not recognize as text or a DNS type code.
var ErrUnsupportedQType = errors.New("dnstracer: unsupported record type")

// noGlueSentinel is stored as a Resolver's IP by resolveNameserverIP when a
// nameserver's own name is being resolved and it has no glue. resolve then
// clears it again and stops without querying or registering anything, to
// prevent infinite descent while tracing the nameserver's own name.
const noGlueSentinel = "No glue"
