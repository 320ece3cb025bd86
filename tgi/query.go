package tgi

// Field is a bit mask selecting which components of a Query are set.
type Field uint8

const (
	FieldType Field = 1 << iota
	FieldGroup
	FieldInstance

	FieldAll = FieldType | FieldGroup | FieldInstance
)

// Query is a partial-key lookup. Only the components selected by Fields
// take part in matching. The zero Query is the empty query and matches
// nothing.
type Query struct {
	TGI
	Fields Field
}

// Exact returns a query matching the full triple.
func Exact(key TGI) Query {
	return Query{TGI: key, Fields: FieldAll}
}

// ByType returns a query matching on type only.
func ByType(t uint32) Query {
	return Query{}.WithType(t)
}

// ByGroup returns a query matching on group only.
func ByGroup(g uint32) Query {
	return Query{}.WithGroup(g)
}

// ByInstance returns a query matching on instance only.
func ByInstance(i uint32) Query {
	return Query{}.WithInstance(i)
}

// ByTypeInstance returns a query matching on type and instance.
func ByTypeInstance(t, i uint32) Query {
	return Query{}.WithType(t).WithInstance(i)
}

// WithType returns a copy of q that also matches on type.
func (q Query) WithType(t uint32) Query {
	q.Type = t
	q.Fields |= FieldType
	return q
}

// WithGroup returns a copy of q that also matches on group.
func (q Query) WithGroup(g uint32) Query {
	q.Group = g
	q.Fields |= FieldGroup
	return q
}

// WithInstance returns a copy of q that also matches on instance.
func (q Query) WithInstance(i uint32) Query {
	q.Instance = i
	q.Fields |= FieldInstance
	return q
}

// Empty reports whether no component is selected.
func (q Query) Empty() bool {
	return q.Fields&FieldAll == 0
}

// IsExact reports whether every component is selected.
func (q Query) IsExact() bool {
	return q.Fields&FieldAll == FieldAll
}

// Has reports whether f is selected.
func (q Query) Has(f Field) bool {
	return q.Fields&f == f
}

// Matches reports whether key satisfies the query. The empty query never
// matches.
func (q Query) Matches(key TGI) bool {
	if q.Empty() {
		return false
	}
	if q.Has(FieldType) && key.Type != q.Type {
		return false
	}
	if q.Has(FieldGroup) && key.Group != q.Group {
		return false
	}
	if q.Has(FieldInstance) && key.Instance != q.Instance {
		return false
	}
	return true
}
