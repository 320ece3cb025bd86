// Package dbpf reads the table of contents of DBPF archives, the container
// format SimCity 4 uses for plugins and game data.
//
// An archive starts with a 96 byte header pointing at an index table. Each
// index row carries a TGI key, a file offset and the stored size. Entries
// listed in the DIR record are QFS compressed; the DIR row holds their
// uncompressed size.
//
//	a, err := dbpf.Open(nil, "plugins/zoning.dat")
//	for _, e := range a.Entries {
//		data, err := dbpf.ReadEntry(file, e)
//		...
//	}
//
// The package never writes archives.
package dbpf
