// Package mmap maps files read-only. The local blob store serves snapshot
// reads from a Mapping instead of copying the file to the heap.
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile and ignores hints.
package mmap
