// Package tgi provides the (type, group, instance) key used to identify
// resource records and a generic index over anything that carries one.
//
// An Index starts in linear mode and can be compiled with Build:
//
//	idx := tgi.NewIndex(items...)
//	idx.Build()
//	item, ok := idx.Find(tgi.Exact(key))
//	props := idx.FindAll(tgi.ByType(0x6534284A).WithGroup(0xa8fbd372))
//
// The empty Query matches nothing, so an accidental zero-value query never
// turns into a full scan.
package tgi
