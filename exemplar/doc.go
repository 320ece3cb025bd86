// Package exemplar decodes SimCity 4 exemplar and cohort property tables.
//
// Both the binary (EQZB/CQZB) and the text (EQZT/CQZT) forms are
// supported. A decoded table keeps its properties in file order; lookups by
// id return the first occurrence. Parent cohort resolution is left to the
// caller since it needs access to an index of registered resources.
package exemplar
