package codec

import "reflect"

// Column describes one result-set column: name, server type tag, mapped
// host type, and updatable flag. Immutable once parsed (spec §3) — there is
// no lazy field here, matching the eager-parsing decision in DESIGN.md.
type Column struct {
	Name      string
	Tag       Tag
	HostType  reflect.Type
	Updatable bool
}

// BoundParam is a (host value, inferred server type) pair. A nil Value
// carries TagUnknown and encodes to a zero-length payload (spec §3).
type BoundParam struct {
	Value any
	Tag   Tag
}

// NewBoundParam infers the wire tag for v via InferTag.
func NewBoundParam(v any) BoundParam {
	if v == nil {
		return BoundParam{Value: nil, Tag: TagUnknown}
	}
	return BoundParam{Value: v, Tag: InferTag(v)}
}
