// Package dbpfindex indexes the resources of SimCity 4 plugin archives.
//
// An Index discovers DBPF files below a set of plugin directories, reads
// their tables of contents and registers every entry under its TGI
// (type, group, instance). Lookups never touch the disk: content is read
// and decoded on demand and kept in a byte-budget cache.
//
// # Quick Start
//
//	ctx := context.Background()
//	idx, _ := dbpfindex.New(
//	    dbpfindex.WithDirs("plugins"),
//	    dbpfindex.WithMemoryBudget(256<<20),
//	)
//	report, _ := idx.Build(ctx)
//	fmt.Println(report.Files, report.Entries)
//
//	e, ok := idx.FindTGI(dbpf.TypeExemplar, 0x07bddf1c, 0x1234)
//	if ok {
//	    ex, _ := e.Exemplar(ctx)
//	    v, _, _ := idx.PropertyValue(ctx, ex, exemplar.OccupantSize)
//	    fmt.Println(v)
//	}
//
// # Load Order
//
// Files load in the order the game uses: baseline files first, then each
// plugin directory, then explicit files. Inside a directory files are
// compared folder by folder, non-.dat files load before .dat files and a
// shallower file loads before a deeper one. When two entries share a TGI
// the one loaded later wins; inside one archive the earlier row wins.
//
// Find returns the winner. FindAll returns every match in load order.
//
// # Cohorts and Families
//
// Exemplars inherit properties from a parent cohort. GetProperty follows
// the parent chain across archives and stops at a missing parent or a
// cycle.
//
// BuildFamilies groups building and prop exemplars by their
// BuildingpropFamily ids:
//
//	if _, err := idx.BuildFamilies(ctx); err != nil {
//	    return err
//	}
//	for _, e := range idx.Family(0x5484cf1a) {
//	    fmt.Println(e)
//	}
//
// A later Build that loads new files invalidates the families.
//
// # Parallel Opening
//
// Archives are opened on a workerpool.Pool when WithPool or WithThreads
// is set, or automatically when a build has more than MultithreadLimit
// pending files.
//
// # Snapshots
//
// An index can be saved without its content and restored without
// rescanning:
//
//	store := blobstore.NewLocalStore("cache")
//	_ = idx.SaveSnapshot(ctx, store, "plugins.idx")
//	idx, _ = dbpfindex.LoadSnapshot(ctx, store, "plugins.idx")
//
// Any blobstore.BlobStore works, including the S3 and MinIO stores.
//
// # Observability
//
// WithLogger sets a structured logger, WithMetricsCollector receives build,
// read, eviction, family and snapshot events. Package metric provides a
// Prometheus collector.
package dbpfindex
