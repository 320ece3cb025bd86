package dbpfindex

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see
// package metric for a Prometheus implementation.
type MetricsCollector interface {
	// RecordBuild is called after each Build. files counts the candidate
	// files that were opened, failed those that could not be.
	RecordBuild(files, entries, failed int, duration time.Duration, err error)

	// RecordRead is called for each Entry.Read. hit reports a cache hit;
	// duration covers the decode on a miss.
	RecordRead(hit bool, duration time.Duration, err error)

	// RecordEviction is called when a decoded payload leaves the cache for
	// space.
	RecordEviction(bytes int64)

	// RecordFamilies is called after each BuildFamilies.
	RecordFamilies(families, members int, duration time.Duration, err error)

	// RecordSnapshot is called after a snapshot save or load. op is "save"
	// or "load".
	RecordSnapshot(op string, bytes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(int, int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordRead(bool, time.Duration, error)           {}
func (NoopMetricsCollector) RecordEviction(int64)                            {}
func (NoopMetricsCollector) RecordFamilies(int, int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordSnapshot(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	BuildCount     atomic.Int64
	BuildErrors    atomic.Int64
	FilesOpened    atomic.Int64
	FilesFailed    atomic.Int64
	Entries        atomic.Int64
	ReadHits       atomic.Int64
	ReadMisses     atomic.Int64
	ReadErrors     atomic.Int64
	DecodeNanos    atomic.Int64
	Evictions      atomic.Int64
	EvictedBytes   atomic.Int64
	FamilyPasses   atomic.Int64
	Families       atomic.Int64
	SnapshotSaves  atomic.Int64
	SnapshotLoads  atomic.Int64
	SnapshotErrors atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(files, entries, failed int, _ time.Duration, err error) {
	b.BuildCount.Add(1)
	if err != nil {
		b.BuildErrors.Add(1)
	}
	b.FilesOpened.Add(int64(files - failed))
	b.FilesFailed.Add(int64(failed))
	b.Entries.Store(int64(entries))
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(hit bool, duration time.Duration, err error) {
	switch {
	case err != nil:
		b.ReadErrors.Add(1)
	case hit:
		b.ReadHits.Add(1)
	default:
		b.ReadMisses.Add(1)
		b.DecodeNanos.Add(duration.Nanoseconds())
	}
}

// RecordEviction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEviction(bytes int64) {
	b.Evictions.Add(1)
	b.EvictedBytes.Add(bytes)
}

// RecordFamilies implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFamilies(families, _ int, _ time.Duration, _ error) {
	b.FamilyPasses.Add(1)
	b.Families.Store(int64(families))
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(op string, _ int, _ time.Duration, err error) {
	if err != nil {
		b.SnapshotErrors.Add(1)
		return
	}
	if op == "save" {
		b.SnapshotSaves.Add(1)
	} else {
		b.SnapshotLoads.Add(1)
	}
}

// BasicMetricsStats is a point-in-time copy of BasicMetricsCollector.
type BasicMetricsStats struct {
	BuildCount     int64
	BuildErrors    int64
	FilesOpened    int64
	FilesFailed    int64
	Entries        int64
	ReadHits       int64
	ReadMisses     int64
	ReadErrors     int64
	DecodeAvgNanos int64
	Evictions      int64
	EvictedBytes   int64
	Families       int64
	SnapshotSaves  int64
	SnapshotLoads  int64
	SnapshotErrors int64
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		BuildCount:     b.BuildCount.Load(),
		BuildErrors:    b.BuildErrors.Load(),
		FilesOpened:    b.FilesOpened.Load(),
		FilesFailed:    b.FilesFailed.Load(),
		Entries:        b.Entries.Load(),
		ReadHits:       b.ReadHits.Load(),
		ReadMisses:     b.ReadMisses.Load(),
		ReadErrors:     b.ReadErrors.Load(),
		Evictions:      b.Evictions.Load(),
		EvictedBytes:   b.EvictedBytes.Load(),
		Families:       b.Families.Load(),
		SnapshotSaves:  b.SnapshotSaves.Load(),
		SnapshotLoads:  b.SnapshotLoads.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
	}
	if s.ReadMisses > 0 {
		s.DecodeAvgNanos = b.DecodeNanos.Load() / s.ReadMisses
	}
	return s
}
