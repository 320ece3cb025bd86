// Package testutil provides fixtures for tests and benchmarks.
//
// This package is intended for use in tests only. It builds DBPF archives
// in memory and on disk, and generates random TGIs and exemplars.
//
// # Archives
//
//	b := testutil.NewArchive()
//	b.Add(key, []byte("raw"))
//	b.AddCompressed(key2, payload)
//	b.AddExemplar(key3, ex)
//	path := b.WriteFile(t, dir, "plugin.dat")
//
// # Random Keys
//
//	rng := testutil.NewRNG(seed)
//	key := rng.TGI()
package testutil
