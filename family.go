package dbpfindex

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/dbpfindex/dbpf"
	"github.com/hupe1980/dbpfindex/exemplar"
	"github.com/hupe1980/dbpfindex/tgi"
)

// FamilyReport summarizes one BuildFamilies pass.
type FamilyReport struct {
	// Exemplars is the number of exemplars decoded.
	Exemplars int
	Families  int
	// Members counts family memberships; an entry in two families counts
	// twice.
	Members  int
	Failed   []*SourceError
	Duration time.Duration
}

// BuildFamilies decodes every building and prop exemplar and groups them
// by their BuildingpropFamily ids. Only the winning entry of each TGI takes
// part; lot configurations are skipped. Both the exemplar type and the
// family ids may be inherited from the parent cohort.
//
// Entries that fail to decode are reported and left out. The previous
// families are replaced only when the pass completes. A pass that
// overlaps a Build or AddFiles which registers new files starts over, up
// to maxFamilyPasses times, after which ErrIndexChanged is returned and
// the families stay unbuilt.
func (idx *Index) BuildFamilies(ctx context.Context) (report *FamilyReport, err error) {
	start := time.Now()
	report = &FamilyReport{}
	defer func() {
		report.Duration = time.Since(start)
		idx.metrics.RecordFamilies(report.Families, report.Members, report.Duration, err)
		idx.logger.LogFamilies(ctx, report, err)
	}()

	for pass := 1; ; pass++ {
		gen, candidates := idx.familyCandidates()
		families, r, err := idx.groupFamilies(ctx, candidates)
		*report = *r
		if err != nil {
			return report, err
		}

		idx.mu.Lock()
		if idx.generation == gen {
			idx.families = families
			idx.familiesBuilt = true
			idx.mu.Unlock()
			for _, se := range report.Failed {
				idx.logger.LogSourceError(ctx, se)
			}
			return report, nil
		}
		idx.mu.Unlock()

		if pass == maxFamilyPasses {
			return report, ErrIndexChanged
		}
		idx.logger.DebugContext(ctx, "index changed during family pass", "pass", pass)
	}
}

const maxFamilyPasses = 3

// groupFamilies decodes candidates and groups them by family id.
func (idx *Index) groupFamilies(ctx context.Context, candidates []*Entry) (map[uint32][]*Entry, *FamilyReport, error) {
	report := &FamilyReport{}
	memberships := make([][]uint32, len(candidates))

	var (
		mu     sync.Mutex
		failed = make(map[int]*SourceError)
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range candidates {
		if err := idx.rc.AcquireBackground(gctx); err != nil {
			break
		}
		g.Go(func() error {
			defer idx.rc.ReleaseBackground()
			ids, err := idx.familyIDs(gctx, e)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				mu.Lock()
				failed[i] = &SourceError{Path: e.Path(), cause: err}
				mu.Unlock()
				return nil
			}
			memberships[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	families := make(map[uint32][]*Entry)
	for i, e := range candidates {
		if se, ok := failed[i]; ok {
			report.Failed = append(report.Failed, se)
			continue
		}
		report.Exemplars++
		for _, id := range memberships[i] {
			families[id] = append(families[id], e)
			report.Members++
		}
	}
	report.Families = len(families)
	return families, report, nil
}

// familyCandidates returns the winning exemplar entries outside the lot
// configuration group in registration order, with the generation they
// were taken at.
func (idx *Index) familyCandidates() (uint64, []*Entry) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []*Entry
	for _, e := range idx.entries.FindAll(tgi.ByType(dbpf.TypeExemplar)) {
		if e.Group == exemplar.LotConfigGroup {
			continue
		}
		if w, ok := idx.entries.Find(tgi.Exact(e.TGI())); !ok || w != e {
			continue
		}
		out = append(out, e)
	}
	return idx.generation, out
}

// familyIDs returns the distinct non-zero family ids of e, or nil when e
// is neither a building nor a prop.
func (idx *Index) familyIDs(ctx context.Context, e *Entry) ([]uint32, error) {
	v, ok, err := idx.entryValue(ctx, e, exemplar.ExemplarType)
	if err != nil || !ok {
		return nil, err
	}
	typ, ok := v.Uint32()
	if !ok || (typ != exemplar.TypeBuildings && typ != exemplar.TypeProp) {
		return nil, nil
	}

	v, ok, err = idx.entryValue(ctx, e, exemplar.BuildingpropFamily)
	if err != nil || !ok {
		return nil, err
	}
	var ids []uint32
	for _, id := range v.Uint32s() {
		if id != 0 && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (idx *Index) entryValue(ctx context.Context, e *Entry, id exemplar.PropertyID) (exemplar.Value, bool, error) {
	prop, ok, err := idx.EntryProperty(ctx, e, id)
	return prop.Value, ok, err
}

// Family returns the members of family id in registration order. It
// returns nil for an unknown id and before BuildFamilies has run.
func (idx *Index) Family(id uint32) []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return slices.Clone(idx.families[id])
}

// Families returns the known family ids in ascending order.
func (idx *Index) Families() []uint32 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]uint32, 0, len(idx.families))
	for id := range idx.families {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// FamiliesBuilt reports whether the families reflect the current entries.
func (idx *Index) FamiliesBuilt() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.familiesBuilt
}
