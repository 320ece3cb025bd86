// Package fs abstracts the file system calls made while scanning and
// opening plugin archives, so tests can swap in [FaultyFS].
//
// Production code uses [Default], a [LocalFS]:
//
//	data, err := fs.ReadFile(fs.Default, path)
//
// [FaultyFS] wraps another FileSystem and fails or truncates matching
// paths:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("broken.dat", fs.Fault{FailOnOpen: true})
//
// Calls take no context. Callers check cancellation between files.
package fs
